package operations

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/defterhane/defter-wallet/internal/api"
	"github.com/defterhane/defter-wallet/internal/wallet"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	engaged   bool
	exitMutex sync.Mutex
	exiting   bool
	walletDir = "./wallets"
)

type WalletServer struct {
	API    *api.API
	Client *ethclient.Client
}

func (s *WalletServer) HandleCommand(command string) error {
	if s.API.HttpMode {
		return fmt.Errorf("terminal commands are not available in HTTP mode")
	}

	switch command {
	case "open":
		return s.PerformOpenLine()
	case "transfer":
		return s.PerformTransfer()
	case "lines":
		return s.ShowKnownLines()
	case "history":
		return s.ShowLineHistory()
	case "exit":
		return s.ExitWallet()
	case "seed-view":
		return s.ViewSeedPhrase()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func ListenForUserCommands(commandChannel chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if !engaged {
			fmt.Println("\nAvailable commands:")
			fmt.Println("- 'open': Open a new credit line")
			fmt.Println("- 'transfer': Transfer line balances")
			fmt.Println("- 'lines': List observed lines")
			fmt.Println("- 'history': View one line's history")
			fmt.Println("- 'seed-view': View seed phrase")
			fmt.Println("- 'exit': Close the wallet")
			fmt.Print("\nEnter command: ")
			scanner.Scan()
			command := strings.TrimSpace(scanner.Text())

			commandChannel <- command
		}
		time.Sleep(100 * time.Millisecond) // Add a small delay to reduce CPU usage
	}
}

func (s *WalletServer) ViewSeedPhrase() error {
	engaged = true
	defer func() { engaged = false }()

	return ViewSeedPhrase()
}

func ViewSeedPhrase() error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("Enter the name of the wallet to view seed phrase: ")
	scanner.Scan()
	walletName := strings.TrimSpace(scanner.Text())

	envFile := filepath.Join(walletDir, walletName+".env")
	err := godotenv.Load(envFile)
	if err != nil {
		return fmt.Errorf("error loading wallet file: %v", err)
	}

	encryptedSeedPhrase := os.Getenv("ENCRYPTED_SEED_PHRASE")
	if encryptedSeedPhrase == "" {
		return fmt.Errorf("encrypted seed phrase not found")
	}

	fmt.Print("Enter your wallet password: ")
	reader := bufio.NewReader(os.Stdin)
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	seedPhrase, err := wallet.Decrypt(encryptedSeedPhrase, password)
	if err != nil {
		return fmt.Errorf("error decrypting seed phrase: %v", err)
	}

	fmt.Println("Your seed phrase is:")
	fmt.Println(seedPhrase)
	fmt.Println("Please ensure you store this securely and never share it with anyone.")

	return nil
}

// DeleteWallet handles the deletion of a specific wallet after password verification.
func DeleteWallet(reader *bufio.Reader) error {
	// Prompt for the wallet name
	fmt.Print("Enter the name of the wallet to delete: ")
	walletName, _ := reader.ReadString('\n')
	walletName = strings.TrimSpace(walletName)

	// Load the wallet's .env file
	dir := viper.GetString("wallet_dir")
	envFile := filepath.Join(dir, walletName+".env")
	err := godotenv.Load(envFile)
	if err != nil {
		return fmt.Errorf("error loading wallet file: %v", err)
	}

	// Retrieve the encrypted seed phrase from the .env file
	encryptedSeedPhrase := os.Getenv("ENCRYPTED_SEED_PHRASE")
	if encryptedSeedPhrase == "" {
		return fmt.Errorf("encrypted seed phrase not found")
	}

	// Prompt for the wallet password
	fmt.Print("Enter your wallet password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	// Attempt to decrypt the seed phrase using the provided password
	_, err = wallet.Decrypt(encryptedSeedPhrase, password)
	if err != nil {
		return fmt.Errorf("error decrypting seed phrase: incorrect password or decryption failed")
	}

	// Confirm the deletion
	fmt.Print("Are you sure you want to delete this wallet? This action cannot be undone. (y/n): ")
	confirmation, _ := reader.ReadString('\n')
	confirmation = strings.ToLower(strings.TrimSpace(confirmation))

	if confirmation != "y" {
		fmt.Println("Wallet deletion cancelled.")
		return nil
	}

	if err := DeleteWalletFiles(walletName); err != nil {
		return fmt.Errorf("error deleting wallet files: %v", err)
	}

	fmt.Println("Wallet deleted successfully.")
	return nil
}

// DeleteWalletFiles removes the wallet file and its state database.
func DeleteWalletFiles(walletName string) error {
	dir := viper.GetString("wallet_dir")
	if err := os.Remove(filepath.Join(dir, walletName+".env")); err != nil && !os.IsNotExist(err) {
		return err
	}
	statePath := filepath.Join(dir, walletName+"_state.db")
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
