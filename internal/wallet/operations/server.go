package operations

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/viper"

	"github.com/defterhane/defter-wallet/internal/api"
	"github.com/defterhane/defter-wallet/internal/chain"
	walletstatedb "github.com/defterhane/defter-wallet/internal/database"
	"github.com/defterhane/defter-wallet/internal/logger"
	"github.com/defterhane/defter-wallet/internal/wallet"
)

const defaultReplayInterval = 10 * time.Minute

func NewWalletServer(w *wallet.Wallet, client *ethclient.Client, name string, httpMode bool) *WalletServer {
	return &WalletServer{
		API:    api.NewAPI(w, name, httpMode),
		Client: client,
	}
}

func initializeWalletServer(seedPhrase, passphrase, walletName string, httpMode bool) (*WalletServer, error) {
	dbPath := filepath.Join(viper.GetString("wallet_dir"), walletName+"_state.db")
	if err := walletstatedb.InitSQLiteDB(dbPath); err != nil {
		return nil, fmt.Errorf("error initializing database: %v", err)
	}

	log.Println("Deriving signing key from seed phrase")
	identity, err := wallet.IdentityFromMnemonic(seedPhrase, passphrase)
	if err != nil {
		return nil, fmt.Errorf("error deriving identity: %v", err)
	}
	log.Printf("Wallet address: %s", identity.Address.Hex())

	rpcURL := viper.GetString("rpc_url")
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc_url is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to node %s: %v", rpcURL, err)
	}

	contractHex := viper.GetString("contract_address")
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("contract_address %q is not a valid address", contractHex)
	}

	chainID := big.NewInt(viper.GetInt64("chain_id"))
	opts, err := bind.NewKeyedTransactorWithChainID(identity.PrivateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("error creating transactor for chain %s: %v", chainID, err)
	}

	contract, err := chain.NewContract(common.HexToAddress(contractHex), client, opts)
	if err != nil {
		return nil, err
	}

	w := wallet.New(identity.Address, contract, wallet.Options{
		DropDuplicateDeliveries: viper.GetBool("drop_duplicate_deliveries"),
	})

	if err := restoreState(w); err != nil {
		log.Printf("Error restoring persisted state: %v", err)
	}

	return NewWalletServer(w, client, walletName, httpMode), nil
}

// restoreState reloads the stores from the SQLite state left by the last
// run so replay only has to cover blocks past the checkpoint.
func restoreState(w *wallet.Wallet) error {
	lines, err := walletstatedb.GetLines()
	if err != nil {
		return err
	}
	for _, line := range lines {
		sent, err := walletstatedb.GetSentEntries(line.LineID)
		if err != nil {
			return err
		}
		received, err := walletstatedb.GetReceivedEntries(line.LineID)
		if err != nil {
			return err
		}
		pending, err := walletstatedb.GetPendingEntries(line.LineID)
		if err != nil {
			return err
		}
		w.RestoreLine(line, sent, received, pending)
	}
	if len(lines) > 0 {
		log.Printf("Restored %d line(s) from disk", len(lines))
	}
	return nil
}

func (s *WalletServer) Run() error {
	if s.API.HttpMode {
		log.Println("Starting in HTTP server mode")
		return s.StartHTTPServer()
	} else {
		log.Println("Starting in terminal mode")
		return s.serverLoop()
	}
}

func (s *WalletServer) Close() {
	if s.API.Wallet != nil {
		s.API.Wallet.Close()
	}
	if s.Client != nil {
		s.Client.Close()
	}
}

// StartHTTPServer starts the replay loop in the background and serves the
// HTTP API in the foreground.
func (s *WalletServer) StartHTTPServer() error {
	go s.StartReplayProcess()

	if err := s.StartListening(); err != nil {
		log.Printf("Error starting live subscriptions: %v", err)
	}

	return s.API.StartHTTPServer()
}

func StartWallet(seedPhrase, passphrase, walletName string, httpMode bool) error {
	// Ensure the JWT key is available
	if err := api.EnsureJWTKey(walletName); err != nil {
		log.Printf("Failed to initialize JWT key: %v", err)
	}

	server, err := initializeWalletServer(seedPhrase, passphrase, walletName, httpMode)
	if err != nil {
		return err
	}
	defer server.Close()

	log.Println("Defter wallet application initialized successfully")
	logger.Info("Defter wallet application initialized successfully")

	return server.Run()
}

func replayInterval() time.Duration {
	interval, err := time.ParseDuration(viper.GetString("replay_interval"))
	if err != nil || interval <= 0 {
		return defaultReplayInterval
	}
	return interval
}
