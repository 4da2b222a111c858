package auth

import (
	"fmt"
	"strings"
)

// ShowTokenSetupGuide displays step-by-step instructions for obtaining an API bearer token
func ShowTokenSetupGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("📚 X API BEARER TOKEN SETUP GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("This tool needs an X API bearer token to read engagement data.")
	fmt.Println("Follow these steps to create one:")
	fmt.Println()

	// Developer portal
	fmt.Println("🌐 STEP 1: Open the developer portal")
	fmt.Println("   - Go to https://developer.x.com/en/portal/dashboard")
	fmt.Println("   - Sign in with the account that owns the posts you want to analyze")
	fmt.Println("   - Sign up for (at least) the Free access tier if you haven't yet")
	fmt.Println()

	// Project and app
	fmt.Println("🔧 STEP 2: Create a project and app")
	fmt.Println("   - Click 'Create Project' and give it any name")
	fmt.Println("   - Inside the project, create an app (the default settings are fine)")
	fmt.Println()

	// Keys
	fmt.Println("🔑 STEP 3: Generate the bearer token")
	fmt.Println("   1. Open your app's 'Keys and tokens' tab")
	fmt.Println("   2. Under 'Bearer Token', click 'Generate' (or 'Regenerate')")
	fmt.Println("   3. Copy the token immediately; the portal only shows it once")
	fmt.Println()

	// Tips
	fmt.Println("💡 TIPS:")
	fmt.Println("   • The liking-users, retweeted-by and search endpoints are heavily")
	fmt.Println("     rate limited on the free tier; long runs pace themselves automatically")
	fmt.Println("   • The API key/secret and access token/secret pairs are optional and")
	fmt.Println("     only needed for user-context endpoints")
	fmt.Println("   • Tokens don't expire, but regenerating one invalidates the old value")
	fmt.Println()

	// Security warning
	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • The bearer token grants read access on behalf of your app")
	fmt.Println("   • NEVER commit it or share it with anyone")
	fmt.Println("   • Store it securely (this tool encrypts it at rest)")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickSetupGuide shows a condensed version for experienced users
func ShowQuickSetupGuide() {
	fmt.Println("\n🔑 Quick Guide: developer.x.com → your project → app → Keys and tokens → Bearer Token → Generate")
	fmt.Println("   Then: xengage auth login  (or export TWITTER_BEARER_TOKEN=...)")
	fmt.Println("   Type 'help' for detailed instructions")
}
