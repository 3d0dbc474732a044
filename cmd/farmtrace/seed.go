package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/server"
	"farmtrace/internal/service"
)

// SeedUser is one stakeholder in a seed file.
type SeedUser struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// demoUsers is one stakeholder per role, used when no source is given.
var demoUsers = []SeedUser{
	{Phone: "+254700000001", Name: "Amina Farms", Location: "Nyeri", Role: "farmer", Password: "farmer123"},
	{Phone: "+254700000002", Name: "Rift Logistics", Location: "Nakuru", Role: "distributor", Password: "distributor123"},
	{Phone: "+254700000003", Name: "Green Grocers", Location: "Nairobi", Role: "retailer", Password: "retailer123"},
	{Phone: "+254700000004", Name: "Wanjiru K.", Location: "Nairobi", Role: "consumer", Password: "consumer123"},
}

var seedSource string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register demo stakeholders",
	Long: `Registers stakeholders from a JSON array read from a file or an http(s) URL,
or one demo stakeholder per role when no source is given. Existing phone
numbers are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		users := demoUsers
		if seedSource != "" {
			if users, err = loadSeedUsers(cmd.Context(), seedSource); err != nil {
				return err
			}
		}

		app, err := server.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.Migrate(); err != nil {
			return err
		}

		created, skipped := 0, 0
		for _, u := range users {
			user, res, err := app.Services.Users.Register(cmd.Context(), service.RegisterInput{
				Phone:    u.Phone,
				Name:     u.Name,
				Location: u.Location,
				Role:     u.Role,
				Password: u.Password,
			})
			switch {
			case errors.Is(err, apperrors.ErrDuplicateUser):
				skipped++
				continue
			case err != nil:
				log.Warn("Skipping seed user", "phone", u.Phone, "error", err)
				skipped++
				continue
			}
			created++
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-20s %s  wallet=%s ledger=%s\n", user.Role, user.Name, user.ID, user.WalletAddress, res.Status)
		}

		log.Info("Seed completed", "created", created, "skipped", skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedSource, "source", "", "JSON file path or http(s) URL with stakeholders")
}

func loadSeedUsers(ctx context.Context, source string) ([]SeedUser, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch seed users: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch seed users: unexpected status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		r = f
	}
	defer r.Close()

	var users []SeedUser
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode seed users: %w", err)
	}
	return users, nil
}
