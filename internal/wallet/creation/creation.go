package creation

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"

	"github.com/defterhane/defter-wallet/internal/wallet"
	"github.com/defterhane/defter-wallet/internal/wallet/operations"
)

const (
	timeFormat = "2006-01-02T15:04:05Z"
)

func CreateNewWallet(reader *bufio.Reader) error {

	err := viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	fmt.Print("Enter a name for your new wallet: ")
	walletName, _ := reader.ReadString('\n')
	walletName = strings.TrimSpace(walletName)

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return fmt.Errorf("error generating mnemonic: %v", err)
	}

	fmt.Println("Your new seed phrase is:")
	fmt.Println(mnemonic)
	fmt.Println("Please write this down and keep it safe.")

	fmt.Print("Enter a password to encrypt your wallet: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error reading password: %v", err)
	}
	password := strings.TrimSpace(string(passwordBytes))
	fmt.Println() // Add newline after password input

	fmt.Print("Enter an optional seed passphrase (press enter to skip): ")
	passphraseBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error reading passphrase: %v", err)
	}
	passphrase := strings.TrimSpace(string(passphraseBytes))
	fmt.Println()

	identity, err := wallet.IdentityFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return fmt.Errorf("error deriving wallet address: %v", err)
	}

	fmt.Print("Enter an API key for the HTTP interface (press enter to skip): ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)

	if apiKey != "" {
		viper.Set("wallet_api_key", apiKey)
	}
	viper.Set("wallet_name", walletName)

	err = viper.WriteConfig()
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	encryptedMnemonic := wallet.Encrypt(mnemonic, password)
	encryptedPassphrase := wallet.Encrypt(passphrase, password)

	// Record the creation time; replay never needs blocks older than it
	created := time.Now().UTC()
	encryptedCreated := wallet.Encrypt(created.Format(timeFormat), password)

	operations.SaveWalletData(walletName, encryptedMnemonic, encryptedPassphrase, encryptedCreated)

	fmt.Printf("Wallet '%s' created and encrypted successfully.\n", walletName)
	fmt.Printf("Wallet address: %s\n", identity.Address.Hex())

	return nil
}

func CreateWalletAPI(walletName, password, apiKey string) (string, error) {
	log.Printf("Creating new wallet: %s", walletName)

	err := viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return "", fmt.Errorf("error generating mnemonic: %v", err)
	}

	if apiKey != "" {
		viper.Set("wallet_api_key", apiKey)
	}
	viper.Set("wallet_name", walletName)

	err = viper.WriteConfig()
	if err != nil {
		return "", fmt.Errorf("error writing config file: %w", err)
	}

	encryptedMnemonic := wallet.Encrypt(mnemonic, password)
	encryptedPassphrase := wallet.Encrypt("", password)

	created := time.Now().UTC()
	encryptedCreated := wallet.Encrypt(created.Format(timeFormat), password)

	operations.SaveWalletData(walletName, encryptedMnemonic, encryptedPassphrase, encryptedCreated)

	log.Printf("Wallet '%s' created and encrypted successfully.", walletName)

	return mnemonic, nil
}

func ExistingWallet(reader *bufio.Reader) error {

	err := viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	fmt.Print("Enter a name for your existing wallet: ")
	walletName, _ := reader.ReadString('\n')
	walletName = strings.TrimSpace(walletName)

	fmt.Print("Enter your existing seed phrase: ")
	mnemonic, _ := reader.ReadString('\n')
	mnemonic = strings.TrimSpace(mnemonic)

	if !isValidMnemonic(mnemonic) {
		return fmt.Errorf("invalid seed phrase")
	}

	fmt.Print("Enter your seed passphrase (press enter if none): ")
	passphraseBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error reading passphrase: %v", err)
	}
	passphrase := strings.TrimSpace(string(passphraseBytes))
	fmt.Println()

	identity, err := wallet.IdentityFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return fmt.Errorf("error deriving wallet address: %v", err)
	}

	fmt.Print("Enter a password to encrypt your wallet: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error reading password: %v", err)
	}
	password := strings.TrimSpace(string(passwordBytes))
	fmt.Println()

	viper.Set("wallet_name", walletName)
	err = viper.WriteConfig()
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	encryptedMnemonic := wallet.Encrypt(mnemonic, password)
	encryptedPassphrase := wallet.Encrypt(passphrase, password)

	// An imported seed may have history anywhere; replay starts at genesis
	created := time.Unix(0, 0).UTC()
	encryptedCreated := wallet.Encrypt(created.Format(timeFormat), password)

	operations.SaveWalletData(walletName, encryptedMnemonic, encryptedPassphrase, encryptedCreated)

	fmt.Printf("Wallet '%s' imported and encrypted successfully.\n", walletName)
	fmt.Printf("Wallet address: %s\n", identity.Address.Hex())

	return nil
}

func ImportWalletAPI(walletName, mnemonic, password, apiKey string) error {
	log.Printf("Importing wallet: %s", walletName)

	err := viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	if !isValidMnemonic(mnemonic) {
		return fmt.Errorf("invalid seed phrase")
	}

	if apiKey != "" {
		viper.Set("wallet_api_key", apiKey)
	}
	viper.Set("wallet_name", walletName)

	err = viper.WriteConfig()
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	encryptedMnemonic := wallet.Encrypt(mnemonic, password)
	encryptedPassphrase := wallet.Encrypt("", password)

	created := time.Unix(0, 0).UTC()
	encryptedCreated := wallet.Encrypt(created.Format(timeFormat), password)

	operations.SaveWalletData(walletName, encryptedMnemonic, encryptedPassphrase, encryptedCreated)

	log.Printf("Wallet '%s' imported and encrypted successfully.", walletName)

	return nil
}

func isValidMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}
