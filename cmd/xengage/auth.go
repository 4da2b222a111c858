package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xengage/pkg/auth"
	"xengage/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage X API credentials",
	Long: `Manage stored X API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (backward compatibility)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store X API credentials securely",
	Long: `Store X API credentials securely in the system keychain or encrypted file.

You will be prompted for:
  - An account label (if not provided)
  - The API bearer token
  - Optional OAuth 1.0a keys for user-context endpoints

To get a bearer token:
1. Sign in at https://developer.x.com
2. Open your project's app in the developer portal
3. Go to Keys and Tokens
4. Generate (or regenerate) the Bearer Token`,
	Example: `  # Interactive login
  xengage auth login

  # Login with a label
  xengage auth login personal`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [label]",
	Short: "Remove stored credentials",
	Long: `Remove stored X API credentials.

If no label is provided, you will be shown a list of stored accounts
to choose from. You can also remove all accounts at once.`,
	Example: `  # Interactive logout
  xengage auth logout

  # Logout specific account
  xengage auth logout personal`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored X API accounts with sanitized credential information.`,
	Run:   runList,
}

// switchCmd represents the auth switch command
var switchCmd = &cobra.Command{
	Use:   "switch [label]",
	Short: "Switch between stored accounts",
	Long: `Switch between stored X API accounts.

If no label is provided, you will be shown a list of accounts to choose from.`,
	Example: `  # Interactive switch
  xengage auth switch

  # Switch to specific account
  xengage auth switch personal`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSwitch,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(switchCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var label string
	if len(args) > 0 {
		label = args[0]
	}

	// Interactive prompts
	reader := bufio.NewReader(os.Stdin)

	// Show the token guide first
	auth.ShowTokenSetupGuide()

	// Ask if ready to continue
	fmt.Print("Ready to enter your bearer token? (Y/n): ")
	ready, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(ready)) == "n" {
		fmt.Println("\nRun 'xengage auth login' when you're ready.")
		return
	}

	fmt.Println() // Add spacing

	if label == "" {
		fmt.Print("🏷️  Account label (press Enter for 'default'): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read account label", err.Error())
			os.Exit(1)
		}
		label = strings.TrimSpace(input)
		if label == "" {
			label = "default"
		}
	}

	// Check if account already exists
	if existing, _ := manager.Retrieve(label); existing != nil {
		fmt.Printf("\n⚠️  Account '%s' already exists. Update credentials? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\n🔐 Enter your credentials (they will be hidden as you type):")
	fmt.Println()

	// Get bearer token with validation
	var bearer string
	for {
		fmt.Printf("Bearer token: ")
		bearer, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read bearer token", err.Error())
			os.Exit(1)
		}

		// Basic validation
		if len(bearer) < 20 {
			fmt.Println("\n❌ That doesn't look like a valid bearer token.")
			fmt.Println("   It should be a long string, usually starting with AAAA.")
			fmt.Println("   Example: AAAAAAAAAAAAAAAAAAAAAMLh...")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	// Optional: OAuth 1.0a keys for user-context endpoints
	var apiKey, apiSecret, accessToken, accessSecret string
	fmt.Print("\nAlso store OAuth 1.0a keys? Collection does not need them. (y/N): ")
	wantOAuth, _ := reader.ReadString('\n')
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(wantOAuth)), "y") {
		fmt.Printf("\nAPI key: ")
		apiKey, _ = readPassword()
		fmt.Printf("API key secret: ")
		apiSecret, _ = readPassword()
		fmt.Printf("Access token: ")
		accessToken, _ = readPassword()
		fmt.Printf("Access token secret: ")
		accessSecret, _ = readPassword()
	}

	// Show what we're about to do
	fmt.Println("\n📋 Summary:")
	fmt.Printf("   Account: %s\n", label)
	fmt.Printf("   Bearer Token: %s...%s (hidden)\n", bearer[:8], bearer[len(bearer)-4:])
	if apiKey != "" {
		fmt.Println("   OAuth 1.0a: keys stored alongside the token")
	}

	// Create account
	account := &auth.Account{
		Label:        label,
		BearerToken:  bearer,
		APIKey:       apiKey,
		APISecret:    apiSecret,
		AccessToken:  accessToken,
		AccessSecret: accessSecret,
	}

	// Store credentials
	fmt.Println("\n💾 Storing credentials securely...")
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	// Set as default if it's the first account
	accounts, _ := manager.List()
	if len(accounts) == 1 {
		// First account becomes default automatically
		fmt.Printf("✅ Set '%s' as default account\n", label)
	}

	fmt.Println("\n🎉 Credentials stored successfully!")
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", label))

	// Show where credentials are stored
	fmt.Println("\n🔒 Security Information:")
	fmt.Println("   Your credentials are encrypted and stored in:")
	if auth.IsKeyringAvailable() {
		fmt.Println("   • System keychain (primary)")
	}
	fmt.Println("   • Encrypted file (backup)")

	// Show how to use
	fmt.Println("\n📖 Quick Start Guide:")
	fmt.Println("   Collect the engagement around one of your posts:")
	fmt.Printf("   $ xengage collect <post-id-or-url>\n")
	fmt.Println("\n   Example:")
	fmt.Printf("   $ xengage collect https://x.com/you/status/1957110173920123456\n")
	fmt.Println("\n   Use specific account:")
	fmt.Printf("   $ xengage collect <post-id-or-url> --account %s\n", label)
	fmt.Println("\n   Show more options:")
	fmt.Printf("   $ xengage collect --help\n")
	fmt.Println("\n⚠️  Never share your credentials or config files!")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) == 0 {
		// List accounts and ask which to remove
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found")
			return
		}

		if len(accounts) == 1 {
			// Only one account, confirm deletion
			account := accounts[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove account '%s'? (y/N): ", account.Label)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(account.Label); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + account.Label)
			return
		}

		// Multiple accounts, show menu
		fmt.Println("Select account to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Label)
		}
		fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		if choice == 0 {
			return
		} else if choice == len(accounts)+1 {
			// Remove all
			fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}

			if err := manager.DeleteAll(); err != nil {
				ui.PrintError("Failed to remove all accounts", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("All accounts removed")
			return
		} else if choice > 0 && choice <= len(accounts) {
			account := accounts[choice-1]
			if err := manager.Delete(account.Label); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + account.Label)
			return
		} else {
			ui.PrintError("Invalid choice")
			os.Exit(1)
		}
	}

	// Label provided as argument
	label := args[0]
	if err := manager.Delete(label); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + label)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'xengage auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Label)
		fmt.Printf("   Bearer Token: %s\n", sanitized.BearerToken)
		if sanitized.APIKey != "" {
			fmt.Printf("   API Key: %s\n", sanitized.APIKey)
		}
		if sanitized.AccessToken != "" {
			fmt.Printf("   Access Token: %s\n", sanitized.AccessToken)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runSwitch(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found")
		return
	}

	if len(accounts) == 1 {
		ui.PrintInfo("Only one account available", accounts[0].Label)
		return
	}

	var label string
	if len(args) > 0 {
		label = args[0]
	} else {
		// Interactive selection
		fmt.Println("Select account:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Label)
		}
		fmt.Println()

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		if choice < 1 || choice > len(accounts) {
			ui.PrintError("Invalid choice")
			os.Exit(1)
		}

		label = accounts[choice-1].Label
	}

	// Verify account exists
	if _, err := manager.Retrieve(label); err != nil {
		ui.PrintError("Account not found", label)
		os.Exit(1)
	}

	ui.PrintSuccess("Account selected: " + label)
	fmt.Println("\nUse the --account flag to use this account:")
	fmt.Printf("  xengage collect <post-id-or-url> --account %s\n", label)
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after password
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
