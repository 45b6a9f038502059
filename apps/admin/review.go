package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core/approval"
)

func (cli *commandLine) caller(ctx context.Context, email string) (approval.Caller, error) {
	identity, err := cli.usrSvc.GetIdentityByEmail(ctx, email)
	if err != nil {
		return approval.Caller{}, errors.Wrapf(err, "finding reviewer %s", email)
	}
	return approval.Caller{IdentityID: identity.ID, Email: identity.Email}, nil
}

// approve provisions the school of an onboarding request, like the API does.
func (cli *commandLine) approve(requestID, reviewerEmail string) error {
	ctx := context.Background()
	caller, err := cli.caller(ctx, reviewerEmail)
	if err != nil {
		return err
	}

	res, err := cli.orch.Approve(ctx, requestID, caller)
	if err != nil {
		return err
	}

	if res.AlreadyProvisioned {
		fmt.Fprintf(cli.out, "Request %s was already provisioned: tenant %s (%s).\n", requestID, res.TenantID, res.AdministratorEmail)
		return nil
	}
	fmt.Fprintf(cli.out, "Request %s approved: tenant %s.\n", requestID, res.TenantID)
	fmt.Fprintf(cli.out, "Administrator: %s\n", res.AdministratorEmail)
	fmt.Fprintf(cli.out, "Temporary password: %s\n", res.TemporaryCredential)
	return nil
}

func (cli *commandLine) reject(requestID, reviewerEmail, reason string) error {
	ctx := context.Background()
	caller, err := cli.caller(ctx, reviewerEmail)
	if err != nil {
		return err
	}

	req, err := cli.orch.Reject(ctx, requestID, caller, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Request %s of %s is %s.\n", req.ID, req.InstitutionName, req.Status)
	return nil
}
