package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core/user"
)

// resetPassword sets a new password that complies with the password policy.
// It is also how an operator re-issues the credentials of a school administrator who lost them.
func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	identity, err := cli.usrSvc.GetIdentityByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = cli.usrSvc.ChangePassword(ctx, identity.ID, user.ChangePassword{
		Password:        pwd,
		PasswordConfirm: pwd,
	}); err != nil {
		return errors.Wrap(err, "changing password")
	}
	fmt.Fprintf(cli.out, "Password of %s has been reset.\n", identity.Email)
	return nil
}

// createSuperAdmin creates or updates a superadmin, the only role allowed to review onboarding requests.
func (cli *commandLine) createSuperAdmin(email, name, pwd string) error {
	if err := cli.validate.Struct(user.ChangePassword{
		Password:        pwd,
		PasswordConfirm: pwd,
		Name:            name,
		Email:           email,
	}); err != nil {
		return err
	}

	profile, err := cli.usrSvc.EnsureSuperAdmin(context.Background(), email, name, pwd)
	if err != nil {
		return errors.Wrap(err, "ensuring superadmin")
	}
	fmt.Fprintf(cli.out, "Superadmin %s is ready.\n", profile.Email)
	return nil
}
