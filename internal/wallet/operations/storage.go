package operations

import (
	"log"
	"os"
	"path/filepath"

	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/defterhane/defter-wallet/internal/wallet"
	"github.com/joho/godotenv"
)

const (
	timeFormat = "2006-01-02T15:04:05Z"
)

func SaveWalletData(walletName, encryptedSeedPhrase, encryptedPassphrase, encryptedCreated string) {
	err := os.MkdirAll(walletDir, os.ModePerm)
	if err != nil {
		log.Fatalf("Error creating wallet directory: %v", err)
	}

	envFile := filepath.Join(walletDir, walletName+".env")
	err = godotenv.Write(map[string]string{
		"ENCRYPTED_SEED_PHRASE": encryptedSeedPhrase,
		"ENCRYPTED_PASSPHRASE":  encryptedPassphrase,
		"ENCRYPTED_CREATED":     encryptedCreated,
	}, envFile)

	if err != nil {
		log.Fatalf("Error saving encrypted data: %v", err)
	}
}

func LoadWallet(walletName string) (string, string, time.Time, error) {
	fmt.Print("Enter your wallet password: ")
	reader := bufio.NewReader(os.Stdin)
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	return LoadWalletAPI(walletName, password)
}

func LoadWalletAPI(walletName, password string) (string, string, time.Time, error) {
	envFile := filepath.Join(walletDir, walletName+".env")
	err := godotenv.Load(envFile)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("error loading wallet file: %v", err)
	}

	encryptedSeedPhrase := os.Getenv("ENCRYPTED_SEED_PHRASE")
	encryptedPassphrase := os.Getenv("ENCRYPTED_PASSPHRASE")
	encryptedCreated := os.Getenv("ENCRYPTED_CREATED")

	if encryptedSeedPhrase == "" || encryptedPassphrase == "" || encryptedCreated == "" {
		return "", "", time.Time{}, fmt.Errorf("encrypted wallet data not found")
	}

	seedPhrase, err := wallet.Decrypt(encryptedSeedPhrase, password)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("error decrypting seed phrase: %v", err)
	}

	passphrase, err := wallet.Decrypt(encryptedPassphrase, password)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("error decrypting passphrase: %v", err)
	}

	createdStr, err := wallet.Decrypt(encryptedCreated, password)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("error decrypting creation date: %v", err)
	}

	created, err := time.Parse(timeFormat, createdStr)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("error parsing creation date: %v", err)
	}

	return seedPhrase, passphrase, created, nil
}

func ListWallets() ([]string, error) {
	files, err := os.ReadDir(walletDir)
	if err != nil {
		return nil, fmt.Errorf("error reading wallet directory: %v", err)
	}

	var wallets []string
	for _, file := range files {
		if filepath.Ext(file.Name()) == ".env" {
			wallets = append(wallets, strings.TrimSuffix(file.Name(), ".env"))
		}
	}

	return wallets, nil
}
