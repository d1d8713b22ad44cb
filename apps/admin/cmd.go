package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/spimentel1201/EduMF-sub001/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	usrSvc     *user.Service
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -dni DNI -name NAME [-email EMAIL] [-role ROLE] - create a user, the password is prompted next")
	fmt.Fprintln(cli.out, "  resetpassword -dni DNI                                - reset user's password")
	fmt.Fprintln(cli.out, "  qrcode -dni DNI                                       - print user's QR login data")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserDNI := addUserCmd.String("dni", "", "The user's DNI.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email (optional).")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "One of admin, teacher or student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordDNI := resetPasswordCmd.String("dni", "", "The user's DNI. The password will be prompted next.")

	qrCodeCmd := flag.NewFlagSet("qrcode", flag.ContinueOnError)
	qrCodeDNI := qrCodeCmd.String("dni", "", "The user's DNI.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, qrCodeCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserDNI == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserDNI, *addUserName, *addUserEmail, *addUserRole, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordDNI == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordDNI, pwd)
	case "qrcode":
		if err := qrCodeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *qrCodeDNI == "" {
			qrCodeCmd.Usage()
			return errHelp
		}
		return cli.qrCode(*qrCodeDNI)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
