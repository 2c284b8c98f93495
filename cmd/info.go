package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var infoJSON bool

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output in JSON format")
}

// resetInfoCommandState resets the info command's global state for testing.
func resetInfoCommandState() {
	infoJSON = false
}

// infoJSONOutput is the JSON shape of the info command.
type infoJSONOutput struct {
	DataDir          string `json:"data_dir"`
	Database         string `json:"database"`
	Version          int    `json:"version"`
	Generation       int    `json:"generation"`
	KDFIterations    int    `json:"kdf_iterations"`
	ChunkSize        int    `json:"chunk_size"`
	PasswordSalt     string `json:"password_salt"`
	PasswordEnvelope string `json:"password_envelope"`
	TokenSalt        string `json:"token_salt"`
	TokenEnvelope    string `json:"token_envelope"`
	Files            int    `json:"files"`
	TotalSize        int64  `json:"total_size"`
	ReadOnly         bool   `json:"read_only"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show vault security details",
	Long: `Shows where the vault lives and the non-secret parts of its key record:
salts, the start of each envelope, the key generation and KDF parameters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting info command")

		result, err := workflows.Info(context.Background(), workflows.InfoOptions{Env: env()})
		if err != nil {
			fmt.Println(formatError(err))
			if isUnexpectedError(err) {
				return err
			}
			return nil
		}
		d := result.Details

		if infoJSON {
			data, err := json.MarshalIndent(infoJSONOutput{
				DataDir:          result.Settings.DataDir,
				Database:         result.Settings.DatabasePath,
				Version:          d.Version,
				Generation:       d.Generation,
				KDFIterations:    d.KDFIterations,
				ChunkSize:        d.ChunkSize,
				PasswordSalt:     d.PasswordSalt,
				PasswordEnvelope: d.PasswordEnvelope,
				TokenSalt:        d.TokenSalt,
				TokenEnvelope:    d.TokenEnvelope,
				Files:            d.Files,
				TotalSize:        d.TotalSize,
				ReadOnly:         d.Broken != nil,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal info to JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Println(ui.Info.Sprint("Vault"))
		fmt.Printf("  Data directory:     %s\n", ui.Path.Sprint(result.Settings.DataDir))
		fmt.Printf("  Files:              %d (%s)\n", d.Files, ui.FormatSize(d.TotalSize))
		fmt.Printf("  Created:            %s\n", d.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  Last key change:    %s\n", d.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Println()
		fmt.Println(ui.Info.Sprint("Keys"))
		fmt.Printf("  Format version:     %d\n", d.Version)
		fmt.Printf("  Key generation:     %d\n", d.Generation)
		fmt.Printf("  KDF:                PBKDF2-HMAC-SHA256, %d iterations\n", d.KDFIterations)
		fmt.Printf("  Cipher:             AES-256-GCM, %s chunks\n", ui.FormatSize(int64(d.ChunkSize)))
		fmt.Printf("  Password salt:      %s\n", ui.Hex.Sprint(d.PasswordSalt))
		fmt.Printf("  Password envelope:  %s\n", ui.Hex.Sprint(d.PasswordEnvelope))
		fmt.Printf("  Token salt:         %s\n", ui.Hex.Sprint(d.TokenSalt))
		fmt.Printf("  Token envelope:     %s\n", ui.Hex.Sprint(d.TokenEnvelope))

		if d.Broken != nil {
			fmt.Println()
			fmt.Println(ui.Warning.Sprint("⚠") + " The vault is read-only: " + d.Broken.Error())
			fmt.Println(ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("locker reconcile"))
		}
		return nil
	},
}
