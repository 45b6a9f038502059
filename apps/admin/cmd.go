package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrSvc   *user.Service
	orch     *approval.Orchestrator
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Fprintln(cli.out, "  createsuperadmin -email EMAIL [-name NAME] - create or update a superadmin")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset an identity's password")
	fmt.Fprintln(cli.out, "  approve -request ID -as EMAIL - approve an onboarding request as the superadmin EMAIL")
	fmt.Fprintln(cli.out, "  reject -request ID -as EMAIL [-reason REASON] - reject an onboarding request as the superadmin EMAIL")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createSuperAdminCmd := flag.NewFlagSet("createsuperadmin", flag.ContinueOnError)
	createSuperAdminEmail := createSuperAdminCmd.String("email", "", "The superadmin's email. The password will be prompted next.")
	createSuperAdminName := createSuperAdminCmd.String("name", "", "The superadmin's name.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The identity's email. The password will be prompted next.")

	approveCmd := flag.NewFlagSet("approve", flag.ContinueOnError)
	approveRequest := approveCmd.String("request", "", "The onboarding request ID.")
	approveAs := approveCmd.String("as", "", "The email of the reviewing superadmin.")

	rejectCmd := flag.NewFlagSet("reject", flag.ContinueOnError)
	rejectRequest := rejectCmd.String("request", "", "The onboarding request ID.")
	rejectAs := rejectCmd.String("as", "", "The email of the reviewing superadmin.")
	rejectReason := rejectCmd.String("reason", "", "Why the request is rejected; sent to the school.")

	for _, fs := range []*flag.FlagSet{createSuperAdminCmd, resetPasswordCmd, approveCmd, rejectCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createsuperadmin":
		if err := createSuperAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createSuperAdminEmail == "" {
			createSuperAdminCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			createSuperAdminCmd.Usage()
			return errHelp
		}
		return cli.createSuperAdmin(*createSuperAdminEmail, *createSuperAdminName, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
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
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "approve":
		if err := approveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *approveRequest == "" || *approveAs == "" {
			approveCmd.Usage()
			return errHelp
		}
		return cli.approve(*approveRequest, *approveAs)
	case "reject":
		if err := rejectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rejectRequest == "" || *rejectAs == "" {
			rejectCmd.Usage()
			return errHelp
		}
		return cli.reject(*rejectRequest, *rejectAs, *rejectReason)
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
