package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(dni, pwd string) error {
	usr, err := cli.usrSvc.ResetPassword(context.Background(), dni, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password reset for %q\n", usr.Name)
	return nil
}
