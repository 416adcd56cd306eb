// Package cmd provides CLI commands for the scribe tool.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/scribe-cli/credentials"
)

// Auth command flags.
var (
	authAPIKey         string
	authToken          string
	authEndpoint       string
	authNonInteractive bool
)

// AuthCmd represents the auth command group.
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage analyzer credentials",
	Long: `Manage credentials for the analyzer endpoint.

The auth commands allow you to login, logout, and check credential status.
Credentials are stored encrypted in ~/.scribe/credentials.yaml, with the
encryption key held in the system keyring.

Authentication methods:
  - API Key: Long-lived key sent as a bearer token (--api-key flag or SCRIBE_API_KEY env)
  - JWT Token: Short-lived token for gateway-fronted endpoints (--token flag or SCRIBE_TOKEN env)

Environment variables take precedence over stored credentials.`,
}

// loginCmd handles authentication login.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store analyzer credentials",
	Long: `Store credentials for the analyzer endpoint.

Examples:
  # Interactive login (prompts for API key, input hidden)
  scribe auth login

  # Login with API key flag
  scribe auth login --api-key sc-abc123...

  # Login with API key from environment
  SCRIBE_API_KEY=sc-abc123... scribe auth login

  # Login with token
  scribe auth login --token eyJhbGciOiJIUzI1NiIs...

Notes:
  - API keys are long-lived and suitable for automation
  - Credentials are stored encrypted at rest`,
	RunE: runLogin,
}

// logoutCmd handles authentication logout.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	Long: `Clear stored analyzer credentials.

This removes all stored authentication data from the local credential store.
Environment variables (SCRIBE_API_KEY, SCRIBE_TOKEN) are not affected.

Examples:
  scribe auth logout`,
	RunE: runLogout,
}

// authStatusCmd shows authentication status.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current credential status",
	Long: `Display the current credential status.

Shows:
  - Authentication type (API key or token)
  - Credential source (stored, environment, or none)
  - Token expiration status (if applicable)
  - Masked credential values

Examples:
  scribe auth status`,
	RunE: runAuthStatus,
}

func init() {
	loginCmd.Flags().StringVar(&authAPIKey, "api-key", "", "API key for the analyzer endpoint")
	loginCmd.Flags().StringVar(&authToken, "token", "", "JWT token for the analyzer endpoint")
	loginCmd.Flags().StringVar(&authEndpoint, "endpoint", "", "Endpoint address to associate with credentials")
	loginCmd.Flags().BoolVar(&authNonInteractive, "non-interactive", false, "Fail instead of prompting for input")

	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(authStatusCmd)
}

// runLogin handles the login command.
func runLogin(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}

	var creds *credentials.Credentials

	// Check flags first
	if authAPIKey != "" {
		creds = &credentials.Credentials{
			AuthType:      credentials.AuthTypeAPIKey,
			APIKey:        authAPIKey,
			ServerAddress: authEndpoint,
		}
	} else if authToken != "" {
		creds = &credentials.Credentials{
			AuthType:      credentials.AuthTypeToken,
			Token:         authToken,
			ServerAddress: authEndpoint,
		}
	}

	// Check environment variables if no flags provided
	if creds == nil {
		if envKey := os.Getenv("SCRIBE_API_KEY"); envKey != "" {
			creds = &credentials.Credentials{
				AuthType:      credentials.AuthTypeAPIKey,
				APIKey:        envKey,
				ServerAddress: authEndpoint,
			}
			fmt.Println("Using API key from SCRIBE_API_KEY environment variable")
		} else if envToken := os.Getenv("SCRIBE_TOKEN"); envToken != "" {
			creds = &credentials.Credentials{
				AuthType:      credentials.AuthTypeToken,
				Token:         envToken,
				ServerAddress: authEndpoint,
			}
			fmt.Println("Using token from SCRIBE_TOKEN environment variable")
		}
	}

	// Interactive prompt if no credentials provided
	if creds == nil {
		if authNonInteractive {
			return fmt.Errorf("no credentials provided and --non-interactive flag set")
		}

		promptedCreds, err := promptForCredentials()
		if err != nil {
			return fmt.Errorf("reading credentials: %w", err)
		}
		creds = promptedCreds
		creds.ServerAddress = authEndpoint
	}

	if err := validateCredential(creds); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	if err := store.Save(creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	fmt.Println("Login successful!")
	fmt.Printf("  Authentication type: %s\n", creds.AuthType)
	if creds.AuthType == credentials.AuthTypeAPIKey {
		fmt.Printf("  API Key: %s\n", credentials.MaskAPIKey(creds.APIKey))
	} else {
		fmt.Printf("  Token: %s\n", credentials.MaskToken(creds.Token))
	}
	if creds.ServerAddress != "" {
		fmt.Printf("  Endpoint: %s\n", creds.ServerAddress)
	}

	credPath, _ := credentials.CredentialsPath()
	fmt.Printf("\nCredentials stored in: %s\n", credPath)

	return nil
}

// promptForCredentials prompts the user for credentials interactively.
func promptForCredentials() (*credentials.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Enter your analyzer endpoint credentials.")
	fmt.Println("You can use either an API key or a JWT token.")
	fmt.Println()
	fmt.Print("API Key (press Enter to use token instead): ")

	// Read API key (hidden input)
	apiKeyBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Add newline after hidden input
	if err != nil {
		// Fallback to regular input if terminal not available
		apiKey, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading API key: %w", err)
		}
		apiKey = strings.TrimSpace(apiKey)
		if apiKey != "" {
			return &credentials.Credentials{
				AuthType: credentials.AuthTypeAPIKey,
				APIKey:   apiKey,
			}, nil
		}
	} else {
		apiKey := strings.TrimSpace(string(apiKeyBytes))
		if apiKey != "" {
			return &credentials.Credentials{
				AuthType: credentials.AuthTypeAPIKey,
				APIKey:   apiKey,
			}, nil
		}
	}

	// Prompt for token if no API key provided
	fmt.Print("JWT Token: ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		token, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("no credentials provided")
		}
		return &credentials.Credentials{
			AuthType: credentials.AuthTypeToken,
			Token:    token,
		}, nil
	}

	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return nil, fmt.Errorf("no credentials provided")
	}

	return &credentials.Credentials{
		AuthType: credentials.AuthTypeToken,
		Token:    token,
	}, nil
}

// validateCredential performs basic validation on credentials.
func validateCredential(creds *credentials.Credentials) error {
	switch creds.AuthType {
	case credentials.AuthTypeAPIKey:
		if creds.APIKey == "" {
			return fmt.Errorf("API key is empty")
		}
		if len(creds.APIKey) < 8 {
			return fmt.Errorf("API key is too short")
		}
	case credentials.AuthTypeToken:
		if creds.Token == "" {
			return fmt.Errorf("token is empty")
		}
		// Basic JWT format check (three base64 parts separated by dots)
		parts := strings.Split(creds.Token, ".")
		if len(parts) != 3 {
			return fmt.Errorf("invalid JWT token format")
		}
	default:
		return fmt.Errorf("unknown authentication type: %s", creds.AuthType)
	}
	return nil
}

// runLogout handles the logout command.
func runLogout(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}

	if !store.Exists() {
		fmt.Println("No stored credentials found.")
		return nil
	}

	if err := store.Delete(); err != nil {
		return fmt.Errorf("removing credentials: %w", err)
	}

	fmt.Println("Logged out successfully.")
	fmt.Println("Stored credentials have been removed.")

	if os.Getenv("SCRIBE_API_KEY") != "" {
		fmt.Println("\nNote: SCRIBE_API_KEY environment variable is still set.")
		fmt.Println("Unset it with: unset SCRIBE_API_KEY")
	}
	if os.Getenv("SCRIBE_TOKEN") != "" {
		fmt.Println("\nNote: SCRIBE_TOKEN environment variable is still set.")
		fmt.Println("Unset it with: unset SCRIBE_TOKEN")
	}

	return nil
}

// runAuthStatus handles the status command.
func runAuthStatus(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}

	fmt.Println("Credential Status")
	fmt.Println("=================")
	fmt.Println()

	envAPIKey := os.Getenv("SCRIBE_API_KEY")
	envToken := os.Getenv("SCRIBE_TOKEN")

	hasEnvCreds := envAPIKey != "" || envToken != ""

	if hasEnvCreds {
		fmt.Println("Environment Variables:")
		if envAPIKey != "" {
			fmt.Printf("  SCRIBE_API_KEY: %s (active)\n", credentials.MaskAPIKey(envAPIKey))
		} else {
			fmt.Println("  SCRIBE_API_KEY: (not set)")
		}
		if envToken != "" {
			fmt.Printf("  SCRIBE_TOKEN: %s (active)\n", credentials.MaskToken(envToken))
		} else {
			fmt.Println("  SCRIBE_TOKEN: (not set)")
		}
		fmt.Println()
	}

	creds, err := store.Load()
	if err != nil {
		if err == credentials.ErrNoCredentials {
			fmt.Println("Stored Credentials: None")
			if !hasEnvCreds {
				fmt.Println("\nNot authenticated. Run 'scribe auth login' to store credentials.")
			}
			return nil
		}
		return fmt.Errorf("loading credentials: %w", err)
	}

	fmt.Println("Stored Credentials:")
	fmt.Printf("  Type: %s\n", creds.AuthType)

	switch creds.AuthType {
	case credentials.AuthTypeAPIKey:
		fmt.Printf("  API Key: %s\n", credentials.MaskAPIKey(creds.APIKey))
		fmt.Printf("  Key ID: %s\n", credentials.GenerateAPIKeyID(creds.APIKey))
	case credentials.AuthTypeToken:
		fmt.Printf("  Token: %s\n", credentials.MaskToken(creds.Token))
		if !creds.ExpiresAt.IsZero() {
			fmt.Printf("  Expires: %s (%s)\n",
				creds.ExpiresAt.Format(time.RFC3339),
				credentials.FormatExpiry(creds.ExpiresAt))
		}
	}

	if creds.ServerAddress != "" {
		fmt.Printf("  Endpoint: %s\n", creds.ServerAddress)
	}
	fmt.Printf("  Last Updated: %s\n", creds.LastUpdated.Format(time.RFC3339))

	fmt.Println()
	if hasEnvCreds {
		fmt.Println("Active Credential Source: Environment variable")
		if envAPIKey != "" {
			fmt.Println("  (SCRIBE_API_KEY takes precedence)")
		} else {
			fmt.Println("  (SCRIBE_TOKEN takes precedence)")
		}
	} else {
		fmt.Println("Active Credential Source: Stored credentials")
	}

	if creds.AuthType == credentials.AuthTypeToken && !creds.ExpiresAt.IsZero() {
		if time.Now().After(creds.ExpiresAt) {
			fmt.Println("\nWarning: Stored token has expired. Run 'scribe auth login' again.")
		} else if time.Until(creds.ExpiresAt) < time.Hour {
			fmt.Println("\nWarning: Token expires soon.")
		}
	}

	return nil
}
