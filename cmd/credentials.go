package cmd

import (
	"fmt"

	"github.com/akyaiy/cortexlink/hooks"
	"github.com/spf13/cobra"
)

var checkCredentialsCmd = &cobra.Command{
	Use:   "check-credentials",
	Short: "Validate the configured credentials",
	Long: `
"check-credentials" loads the credentials file and the CL_* overrides the same way
"run" does and reports whether the handshake has what it needs. Secrets are shown as
fingerprints only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := hooks.Compositor
		if err := c.LoadEnv(); err != nil {
			return err
		}
		path := *c.Env.ConfigPath
		if p := c.CMDLine.CheckCredentials.ConfigPath; p != "" {
			path = p
		}
		if err := c.LoadConf(path); err != nil {
			return err
		}
		file := *c.Conf.Cortex.CredentialsFile
		if err := c.LoadCredentials(file); err != nil {
			return err
		}

		creds := hooks.Credentials(c.Credentials)
		fmt.Printf("credentials file: %s\n", file)
		fmt.Printf("credentials: %s\n", creds)
		if err := creds.Validate(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCredentialsCmd)
}
