// cmd/mcctl is the moltcities staff CLI: login, list jobs, review disputes,
// and force escrow release/refund. Grounded on the teacher's cmd/nap —
// same cobra root + persistent viper config layering, narrowed to the
// platform-admin surface instead of agent registration/resolution.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moltcities/backend/pkg/client"
)

var (
	apiURL  string
	cfgFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mcctl",
	Short: "moltcities staff CLI",
	Long: `mcctl is the command-line interface for moltcities platform staff.

It logs in as a staff account, lists and manages jobs, and reviews
governance disputes.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.mcctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiURL == "" {
			apiURL = viper.GetString("api_url")
		}
		if apiURL == "" {
			apiURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.mcctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "moltcities API base URL (default http://localhost:8080)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(disputesCmd)
	rootCmd.AddCommand(versionCmd)
}

func tokenFromEnv() string {
	return os.Getenv("MCCTL_TOKEN")
}

func newClient() *client.Client {
	if tok := tokenFromEnv(); tok != "" {
		return client.New(apiURL, client.WithBearerToken(tok))
	}
	return client.New(apiURL)
}

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate as a staff account and print a bearer token",
	Long: `login exchanges email/password for a staff session token.

Export the printed token as MCCTL_TOKEN to authenticate subsequent commands:

  export MCCTL_TOKEN=$(mcctl login --email staff@example.com --password hunter2)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(apiURL)
		if err := c.AdminLogin(context.Background(), loginEmail, loginPassword); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Println(c.Token())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "staff account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "staff account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List and manage jobs",
}

var jobsListStatus string

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		jobs, err := c.ListJobs(context.Background(), client.ListJobsOptions{Status: jobsListStatus})
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tREWARD")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", j.ID, j.Title, j.Status, j.RewardLamports)
		}
		return w.Flush()
	},
}

var jobsReleaseCmd = &cobra.Command{
	Use:   "release <job-id>",
	Short: "Force escrow release to the worker (admin override)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().AdminReleaseEscrow(context.Background(), args[0]); err != nil {
			return fmt.Errorf("release escrow: %w", err)
		}
		fmt.Println("escrow released")
		return nil
	},
}

var jobsRefundCmd = &cobra.Command{
	Use:   "refund <job-id>",
	Short: "Force escrow refund to the poster (admin override)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().AdminRefundEscrow(context.Background(), args[0]); err != nil {
			return fmt.Errorf("refund escrow: %w", err)
		}
		fmt.Println("escrow refunded")
		return nil
	},
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsListStatus, "status", "", "filter by status (open, completed, disputed, ...)")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsReleaseCmd)
	jobsCmd.AddCommand(jobsRefundCmd)
}

var disputesCmd = &cobra.Command{
	Use:   "disputes",
	Short: "Review open job disputes",
}

var disputesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open disputes",
	RunE: func(cmd *cobra.Command, args []string) error {
		disputes, err := newClient().ListDisputes(context.Background())
		if err != nil {
			return fmt.Errorf("list disputes: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tJOB\tREASON\tCREATED")
		for _, d := range disputes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.JobID, d.Reason, d.CreatedAt)
		}
		return w.Flush()
	},
}

var disputesVoteWorker bool

var disputesVoteCmd = &cobra.Command{
	Use:   "vote <dispute-id>",
	Short: "Cast a staff vote on a dispute",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().VoteDispute(context.Background(), args[0], disputesVoteWorker); err != nil {
			return fmt.Errorf("vote: %w", err)
		}
		fmt.Println("vote recorded")
		return nil
	},
}

func init() {
	disputesVoteCmd.Flags().BoolVar(&disputesVoteWorker, "for-worker", false, "vote in favor of the worker (default: poster)")
	disputesCmd.AddCommand(disputesListCmd)
	disputesCmd.AddCommand(disputesVoteCmd)
}

var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mcctl CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mcctl %s (moltcities)\n", version)
	},
}
