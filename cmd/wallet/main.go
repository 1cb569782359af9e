package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/defterhane/defter-wallet/internal/config"
	"github.com/defterhane/defter-wallet/internal/ipc"
	"github.com/defterhane/defter-wallet/internal/logger"
	"github.com/defterhane/defter-wallet/internal/wallet"
	"github.com/defterhane/defter-wallet/internal/wallet/auth"
	"github.com/defterhane/defter-wallet/internal/wallet/creation"
	"github.com/defterhane/defter-wallet/internal/wallet/operations"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "defter-wallet",
	Short: "Credit Line Wallet CLI",
	Long:  `A credit line wallet application with both interactive and CLI modes.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(createWalletCmd)
	rootCmd.AddCommand(importWalletCmd)
	rootCmd.AddCommand(openWalletCmd)
	rootCmd.AddCommand(openLineCmd)
	rootCmd.AddCommand(transferLineCmd)
	rootCmd.AddCommand(closeLineCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(getBalanceCmd)
	rootCmd.AddCommand(getLineCmd)
	rootCmd.AddCommand(lineHistoryCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(listLinesCmd)
	rootCmd.AddCommand(lineIDCmd)
	rootCmd.AddCommand(exitWalletCmd)
	rootCmd.AddCommand(deleteWalletCmd)
	rootCmd.AddCommand(viewSeedCmd)
}

func initConfig() {
	err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	baseDir, err := os.Getwd()
	if err != nil {
		log.Fatalf("Error getting current directory: %v", err)
	}

	viper.Set("base_dir", baseDir)

	// Initialize the logger and ensure it starts with a fresh log file
	err = logger.Init("wallet_startup.log")
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}

	err = logger.RotateLog("wallet_startup.log")
	if err != nil {
		log.Fatalf("Error rotating log file: %v", err)
	}
}

func main() {
	initConfig()
	if len(os.Args) > 1 {
		// CLI mode
		if err := rootCmd.Execute(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	} else {
		// Interactive mode
		interactiveMode()
	}
}

func interactiveMode() {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nCredit Line Wallet Manager")
		fmt.Println("1. Create a new wallet")
		fmt.Println("2. Import an existing wallet")
		fmt.Println("3. Login to an existing wallet")
		fmt.Println("4. Delete a wallet")
		fmt.Println("5. Exit")
		fmt.Print("\nEnter your choice (1, 2, 3, 4, or 5): ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			err := creation.CreateNewWallet(reader)
			if err != nil {
				log.Printf("Error setting up new wallet: %s", err)
			}
		case "2":
			err := creation.ExistingWallet(reader)
			if err != nil {
				log.Printf("Error setting up wallet: %s", err)
			}
		case "3":
			err := auth.OpenAndLoadWallet(reader)
			if err != nil {
				log.Printf("Error starting up wallet: %s", err)
			}
		case "4":
			fmt.Println("Deleting a wallet.")
			err := operations.DeleteWallet(reader)
			if err != nil {
				log.Printf("Error deleting wallet: %s", err)
			}
		case "5":
			fmt.Println("Exiting program. Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

// sendServerCommand forwards a command to the running wallet server and
// prints the JSON result.
func sendServerCommand(command string, args []string) {
	client, err := ipc.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to wallet server: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	result, err := client.SendCommand(command, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error communicating with wallet server: %v\n", err)
		os.Exit(1)
	}

	json.NewEncoder(os.Stdout).Encode(result)
}

var createWalletCmd = &cobra.Command{
	Use:   "create [wallet-name] [password] [apiKey]",
	Short: "Create a new wallet",
	Long: `Create a new wallet with the given name and password.
	Optionally provide an apiKey for HTTP API access.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		walletName := args[0]
		password := args[1]
		apiKey := ""
		if len(args) > 2 {
			apiKey = args[2]
		}

		mnemonic, err := creation.CreateWalletAPI(walletName, password, apiKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating wallet: %v\n", err)
			os.Exit(1)
		}

		result := struct {
			WalletName string `json:"walletName"`
			Mnemonic   string `json:"mnemonic"`
		}{
			WalletName: walletName,
			Mnemonic:   mnemonic,
		}

		json.NewEncoder(os.Stdout).Encode(result)
	},
}

var importWalletCmd = &cobra.Command{
	Use:   "import [wallet-name] [mnemonic] [password] [apiKey]",
	Short: "Import an existing wallet",
	Long: `Import an existing wallet with the given name, mnemonic, and password.
	Optionally provide an apiKey for HTTP API access.`,
	Args: cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		walletName := args[0]
		mnemonic := args[1]
		password := args[2]
		apiKey := ""
		if len(args) > 3 {
			apiKey = args[3]
		}

		err := creation.ImportWalletAPI(walletName, mnemonic, password, apiKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing wallet: %v\n", err)
			os.Exit(1)
		}

		result := struct {
			WalletName string `json:"walletName"`
			Message    string `json:"message"`
		}{
			WalletName: walletName,
			Message:    "Wallet imported successfully",
		}

		json.NewEncoder(os.Stdout).Encode(result)
	},
}

var openWalletCmd = &cobra.Command{
	Use:   "open [wallet-name] [password]",
	Short: "Open and load a wallet",
	Long:  `Open and load a wallet with the given name and password.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		walletName := args[0]
		password := args[1]

		logger.Info("Starting wallet open operation for: ", walletName)

		err := auth.OpenAndLoadWalletAPI(walletName, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening wallet: %v\n", err)
			os.Exit(1)
		}

		result := struct {
			WalletName string `json:"walletName"`
			Message    string `json:"message"`
		}{
			WalletName: walletName,
			Message:    "Wallet opened successfully",
		}

		json.NewEncoder(os.Stdout).Encode(result)
	},
}

var openLineCmd = &cobra.Command{
	Use:   "open-line [maturity-date] [unit] [receiver] [amount]",
	Short: "Open a new credit line",
	Long: `Open a new credit line maturing at the given unix timestamp, denominated
	in the given unit, crediting the receiver with the given amount.`,
	Args: cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid maturity date: %v\n", err)
			os.Exit(1)
		}
		sendServerCommand("open-line", args)
	},
}

var transferLineCmd = &cobra.Command{
	Use:   "transfer-line [line-id] [amount] [to]",
	Short: "Transfer part of a credit line",
	Long:  `Transfer the given amount of an existing credit line to another address.`,
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("transfer-line", args)
	},
}

var closeLineCmd = &cobra.Command{
	Use:   "close-line [maturity-date] [unit] [total-amount]",
	Short: "Close a matured credit line",
	Long:  `Close a credit line you issued by settling its total amount.`,
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("close-line", args)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw [line-id] [unit]",
	Short: "Withdraw from a closed credit line",
	Long:  `Withdraw your share of a credit line that the issuer has closed.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("withdraw", args)
	},
}

var getBalanceCmd = &cobra.Command{
	Use:   "balance [line-id]",
	Short: "Get the wallet balance on a credit line",
	Long:  `Retrieve the current balance of the opened wallet on the given credit line.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("balance", args)
	},
}

var getLineCmd = &cobra.Command{
	Use:   "get-line [line-id]",
	Short: "Get the details of a credit line",
	Long:  `Retrieve the issuer, maturity date, unit and status of a credit line.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("get-line", args)
	},
}

var lineHistoryCmd = &cobra.Command{
	Use:   "line-history [line-id]",
	Short: "Get the transfer history of a credit line",
	Long:  `Retrieve the sent and received entries recorded for a credit line.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("line-history", args)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending [line-id]",
	Short: "Get the pending entries of a credit line",
	Long:  `Retrieve the locally recorded entries of a credit line that are still awaiting confirmation.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("pending", args)
	},
}

var listLinesCmd = &cobra.Command{
	Use:   "list-lines",
	Short: "List all known credit lines",
	Long:  `Retrieve the identifiers of every credit line the wallet has seen.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sendServerCommand("list-lines", nil)
	},
}

// lineIDCmd computes the identifier locally, without a running server.
var lineIDCmd = &cobra.Command{
	Use:   "line-id [issuer] [maturity-date] [unit]",
	Short: "Compute the identifier of a credit line",
	Long: `Compute the identifier of a credit line from its issuer address,
	maturity date (unix timestamp) and unit address.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		if !common.IsHexAddress(args[0]) {
			fmt.Fprintf(os.Stderr, "Invalid issuer address: %s\n", args[0])
			os.Exit(1)
		}
		maturity, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid maturity date: %v\n", err)
			os.Exit(1)
		}

		var lineID common.Hash
		if common.IsHexAddress(args[2]) {
			lineID = wallet.ComputeLineID(common.HexToAddress(args[0]), maturity, common.HexToAddress(args[2]))
		} else {
			lineID = wallet.ComputeLineIDForSymbol(common.HexToAddress(args[0]), maturity, args[2])
		}

		result := struct {
			LineID string `json:"lineId"`
		}{
			LineID: lineID.Hex(),
		}

		json.NewEncoder(os.Stdout).Encode(result)
	},
}

var exitWalletCmd = &cobra.Command{
	Use:   "exit",
	Short: "Exit and shut down the wallet",
	Long:  "Gracefully shut down the wallet.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, err := ipc.NewClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to wallet server: %v\n", err)
			os.Exit(1)
		}
		defer client.Close()

		result, err := client.SendCommand("exit", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exiting wallet: %v\n", err)
			os.Exit(1)
		}

		log.Println("Exit Result: ", result)

		json.NewEncoder(os.Stdout).Encode(result)
	},
}

var deleteWalletCmd = &cobra.Command{
	Use:   "delete [wallet-name] [password]",
	Short: "Delete an existing wallet",
	Long: `Delete an existing wallet with the given name after verifying the password.
	This action is irreversible, so proceed with caution.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		walletName := args[0]
		password := args[1]

		walletDir := viper.GetString("wallet_dir")
		envFile := filepath.Join(walletDir, walletName+".env")
		err := godotenv.Load(envFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading wallet file: %v\n", err)
			os.Exit(1)
		}

		encryptedSeedPhrase := os.Getenv("ENCRYPTED_SEED_PHRASE")
		if encryptedSeedPhrase == "" {
			fmt.Fprintf(os.Stderr, "Encrypted seed phrase not found\n")
			os.Exit(1)
		}

		_, err = wallet.Decrypt(encryptedSeedPhrase, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decrypting seed phrase: incorrect password or decryption failed\n")
			os.Exit(1)
		}

		err = operations.DeleteWalletFiles(walletName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting wallet files: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Wallet deleted successfully.")
	},
}

var viewSeedCmd = &cobra.Command{
	Use:   "view-seed [wallet-name] [password]",
	Short: "View the seed phrase of a wallet",
	Long:  `Retrieve and view the seed phrase of the specified wallet after verifying the password. Use this command with caution as seed phrases are sensitive information.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		walletName := args[0]
		password := args[1]

		walletDir := viper.GetString("wallet_dir")
		envFile := filepath.Join(walletDir, walletName+".env")
		err := godotenv.Load(envFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading wallet file: %v\n", err)
			os.Exit(1)
		}

		encryptedSeedPhrase := os.Getenv("ENCRYPTED_SEED_PHRASE")
		if encryptedSeedPhrase == "" {
			fmt.Fprintf(os.Stderr, "Encrypted seed phrase not found\n")
			os.Exit(1)
		}

		seedPhrase, err := wallet.Decrypt(encryptedSeedPhrase, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decrypting seed phrase: incorrect password or decryption failed\n")
			os.Exit(1)
		}

		result := struct {
			WalletName string `json:"walletName"`
			SeedPhrase string `json:"seedPhrase"`
		}{
			WalletName: walletName,
			SeedPhrase: seedPhrase,
		}

		err = json.NewEncoder(os.Stdout).Encode(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
			os.Exit(1)
		}
	},
}
