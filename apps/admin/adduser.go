package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

// addUser validates and creates an active user.User
func (cli *commandLine) addUser(dni, name, email, role, pwd string) error {
	nu := user.NewUser{
		DNI:             dni,
		Name:            name,
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(cli.validate); err != nil {
		return cli.describe(err)
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return cli.describe(err)
	}
	fmt.Fprintf(cli.out, "created %s %q (%s)\n", usr.Role, usr.Name, usr.ID)
	return nil
}

// describe flattens validation errors into a single readable error.
func (cli *commandLine) describe(err error) error {
	var msgs map[string]string
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msgs = core.TranslateValidationErrors(vErr, cli.translator)
	case *core.ValidationError:
		msgs = make(map[string]string, len(vErr.Fields))
		for _, fErr := range vErr.Fields {
			msgs[fErr.Field] = fErr.Error
		}
	}
	if len(msgs) == 0 {
		return err
	}

	fields := make([]string, 0, len(msgs))
	for f := range msgs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, f+": "+msgs[f])
	}
	return errors.New(strings.Join(lines, "; "))
}
