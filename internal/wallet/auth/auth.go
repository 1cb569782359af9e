package auth

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/defterhane/defter-wallet/internal/wallet/operations"
	"github.com/spf13/viper"
)

// OpenAndLoadWallet lists the stored wallets, lets the user pick one and
// starts it after the password check.
func OpenAndLoadWallet(reader *bufio.Reader) error {
	err := viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	wallets, err := operations.ListWallets()
	if err != nil {
		return fmt.Errorf("error listing wallets: %v", err)
	}

	if len(wallets) == 0 {
		fmt.Println("No wallets found. Please create a new wallet first.")
		return errors.New("no wallets found. Please create a new wallet first")
	}

	fmt.Println("Available wallets:")
	for i, name := range wallets {
		fmt.Printf("%d. %s\n", i+1, name)
	}

	var choice int
	for {
		fmt.Print("Enter the number of the wallet you want to login to: ")
		_, err := fmt.Fscanf(reader, "%d\n", &choice)
		if err == nil && choice > 0 && choice <= len(wallets) {
			break
		} else {
			fmt.Println("Invalid choice. Please try again.")
		}
	}

	walletName := wallets[choice-1]

	seedPhrase, passphrase, created, err := operations.LoadWallet(walletName)
	if err != nil {
		return fmt.Errorf("error loading wallet: %v", err)
	}
	log.Printf("Wallet '%s' created at %s", walletName, created.Format("2006-01-02"))

	serverMode := viper.GetBool("server_mode")

	// A wallet serving the HTTP API cannot also run interactively.
	if serverMode && viper.GetString("wallet_name") == walletName {
		fmt.Print("This wallet is configured to serve the HTTP API. If you use it in terminal/cli mode, the API will not be available.\nDo you want to use the wallet in terminal/CLI mode? (y/n): ")
		cliChoice, _ := reader.ReadString('\n')
		cliChoice = strings.TrimSpace(strings.ToLower(cliChoice))

		if cliChoice == "y" {
			fmt.Println("You are using the wallet in terminal mode. The HTTP API will not be started.")
			serverMode = false
		}
	}

	log.Println("Server mode: ", serverMode)

	err = operations.StartWallet(seedPhrase, passphrase, walletName, serverMode)
	if err != nil {
		return fmt.Errorf("failed to start wallet: %v", err)
	}

	fmt.Printf("Wallet '%s' loaded successfully.\n", walletName)
	return nil
}

// OpenAndLoadWalletAPI starts the named wallet without prompting. The HTTP
// API is always served in this mode.
func OpenAndLoadWalletAPI(walletName, password string) error {
	err := viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	seedPhrase, passphrase, _, err := operations.LoadWalletAPI(walletName, password)
	if err != nil {
		return fmt.Errorf("error loading wallet: %v", err)
	}

	err = operations.StartWallet(seedPhrase, passphrase, walletName, true)
	if err != nil {
		return fmt.Errorf("failed to start wallet: %v", err)
	}

	fmt.Printf("Wallet '%s' loaded successfully.\n", walletName)
	return nil
}
