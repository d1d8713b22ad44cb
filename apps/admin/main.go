package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/user"
	"github.com/spimentel1201/EduMF-sub001/storage/database"
	sqlxrepos "github.com/spimentel1201/EduMF-sub001/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(db), conf),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
