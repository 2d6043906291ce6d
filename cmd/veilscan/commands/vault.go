package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

func NewVaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the encrypted identity vault",
		Long: `Manage the vault of identity profiles that scans run against. Profiles are
encrypted at rest; every subcommand except init needs the passphrase.`,
	}

	cmd.PersistentFlags().String("passphrase", "", "Vault passphrase (defaults to $VEILSCAN_VAULT_PASSPHRASE or prompt)")

	cmd.AddCommand(newVaultInitCommand())
	cmd.AddCommand(newVaultAddCommand())
	cmd.AddCommand(newVaultListCommand())
	cmd.AddCommand(newVaultShowCommand())
	cmd.AddCommand(newVaultRemoveCommand())
	cmd.AddCommand(newVaultPassphraseCommand())
	return cmd
}

func vaultApp(cmd *cobra.Command, unlock bool) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if unlock {
		passphrase, _ := cmd.Flags().GetString("passphrase")
		if err := a.unlockVault(passphrase); err != nil {
			return nil, fmt.Errorf("unlock vault: %w", err)
		}
	}
	return a, nil
}

func newVaultInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new empty vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := vaultApp(cmd, false)
			if err != nil {
				return err
			}

			passphrase, _ := cmd.Flags().GetString("passphrase")
			if passphrase == "" {
				passphrase = os.Getenv("VEILSCAN_VAULT_PASSPHRASE")
			}
			if passphrase == "" {
				passphrase, err = promptPassphrase("New vault passphrase: ")
				if err != nil {
					return err
				}
				confirm, err := promptPassphrase("Confirm passphrase: ")
				if err != nil {
					return err
				}
				if passphrase != confirm {
					return fmt.Errorf("passphrases do not match")
				}
			}

			if err := a.vault.Init(passphrase); err != nil {
				return err
			}
			fmt.Println("Vault initialized.")
			return nil
		},
	}
}

func newVaultAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [profile-id]",
		Short: "Add or update an identity profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := vaultApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.vault.Lock()

			p := &models.Profile{ID: args[0]}
			if existing, err := a.vault.GetProfile(args[0]); err == nil {
				p = existing
			}

			flags := cmd.Flags()
			if v, _ := flags.GetString("display-name"); v != "" {
				p.DisplayName = v
			}
			if v, _ := flags.GetString("name"); v != "" {
				p.FullName = v
			}
			if v, _ := flags.GetStringSlice("email"); len(v) > 0 {
				p.Emails = utils.UniqueStrings(append(p.Emails, v...))
			}
			if v, _ := flags.GetStringSlice("phone"); len(v) > 0 {
				p.Phones = utils.UniqueStrings(append(p.Phones, v...))
			}
			if v, _ := flags.GetStringSlice("username"); len(v) > 0 {
				p.Usernames = utils.UniqueStrings(append(p.Usernames, v...))
			}
			if v, _ := flags.GetStringSlice("address"); len(v) > 0 {
				p.Addresses = utils.UniqueStrings(append(p.Addresses, v...))
			}
			if v, _ := flags.GetString("dob"); v != "" {
				p.DateOfBirth = v
			}
			if v, _ := flags.GetString("ssn"); v != "" {
				p.SSN = v
			}
			if v, _ := flags.GetString("employer"); v != "" {
				p.Employer = v
			}

			if err := a.vault.SaveProfile(p); err != nil {
				return err
			}
			fmt.Printf("Profile %s saved.\n", p.ID)
			return nil
		},
	}

	cmd.Flags().String("display-name", "", "Human-friendly profile label")
	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().StringSlice("email", nil, "Email address (repeatable)")
	cmd.Flags().StringSlice("phone", nil, "Phone number (repeatable)")
	cmd.Flags().StringSlice("username", nil, "Username or handle (repeatable)")
	cmd.Flags().StringSlice("address", nil, "Postal address (repeatable)")
	cmd.Flags().String("dob", "", "Date of birth (YYYY-MM-DD)")
	cmd.Flags().String("ssn", "", "Social security number")
	cmd.Flags().String("employer", "", "Employer name")
	return cmd
}

func newVaultListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vault profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := vaultApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.vault.Lock()

			profiles, err := a.vault.ListProfiles()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Println("Vault is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAILS\tUSERNAMES\tUPDATED")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					p.ID, p.DisplayName, len(p.Emails), len(p.Usernames),
					p.UpdatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func newVaultShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [profile-id]",
		Short: "Show one profile with sensitive values masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := vaultApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.vault.Lock()

			p, err := a.vault.GetProfile(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:           %s\n", p.ID)
			fmt.Printf("Display name: %s\n", p.DisplayName)
			fmt.Printf("Full name:    %s\n", p.FullName)
			for _, e := range p.Emails {
				fmt.Printf("Email:        %s\n", utils.MaskSensitiveData(e))
			}
			for _, ph := range p.Phones {
				fmt.Printf("Phone:        %s\n", utils.MaskSensitiveData(ph))
			}
			for _, u := range p.Usernames {
				fmt.Printf("Username:     %s\n", u)
			}
			if p.SSN != "" {
				fmt.Printf("SSN:          %s\n", utils.MaskSensitiveData(p.SSN))
			}
			if p.DateOfBirth != "" {
				fmt.Printf("DOB:          %s\n", utils.MaskSensitiveData(p.DateOfBirth))
			}
			if p.Employer != "" {
				fmt.Printf("Employer:     %s\n", p.Employer)
			}
			return nil
		},
	}
	return cmd
}

func newVaultRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [profile-id]",
		Short: "Remove a profile from the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := vaultApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.vault.Lock()

			if err := a.vault.DeleteProfile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Profile %s removed.\n", args[0])
			return nil
		},
	}
}

func newVaultPassphraseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passphrase",
		Short: "Change the vault passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := vaultApp(cmd, false)
			if err != nil {
				return err
			}

			oldPass, err := promptPassphrase("Current passphrase: ")
			if err != nil {
				return err
			}
			if err := a.vault.Unlock(oldPass); err != nil {
				return err
			}
			defer a.vault.Lock()

			newPass, err := promptPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassphrase("Confirm new passphrase: ")
			if err != nil {
				return err
			}
			if newPass != confirm {
				return fmt.Errorf("passphrases do not match")
			}

			if err := a.vault.ChangePassphrase(oldPass, newPass); err != nil {
				return err
			}
			fmt.Println("Passphrase changed.")
			return nil
		},
	}
}
