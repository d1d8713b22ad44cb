package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// qrCode prints the data to encode in the user's QR login code.
func (cli *commandLine) qrCode(dni string) error {
	usr, err := cli.usrSvc.GetByDNI(context.Background(), dni)
	if err != nil {
		return errors.Wrap(err, "finding user by DNI")
	}
	data, err := cli.usrSvc.QRCode(usr)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, data)
	return nil
}
