package operations

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	walletstatedb "github.com/defterhane/defter-wallet/internal/database"
	"github.com/defterhane/defter-wallet/internal/ipc"
	"github.com/defterhane/defter-wallet/internal/logger"
)

// ReplayChain walks historical blocks from the stored checkpoint up to the
// node's head in fixed chunks, folding every event through the wallet and
// advancing the checkpoint after each chunk. Interrupting mid-walk is safe;
// the next run resumes at the last persisted chunk.
func (s *WalletServer) ReplayChain(ipcServer *ipc.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	latest, err := s.Client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("error getting latest block: %v", err)
	}

	from, err := walletstatedb.GetLastReplayedBlock()
	if err != nil {
		return fmt.Errorf("error reading replay checkpoint: %v", err)
	}
	if from > 0 {
		from++
	}
	if from > latest {
		return nil
	}

	chunk := viper.GetUint64("replay_chunk_blocks")
	if chunk == 0 {
		chunk = 50000
	}

	log.Printf("Replaying blocks %d through %d", from, latest)
	logger.Infof("Replaying blocks %d through %d", from, latest)

	for start := from; start <= latest; start += chunk {
		end := start + chunk - 1
		if end > latest {
			end = latest
		}

		if err := s.API.Wallet.Replay(ctx, start, &end); err != nil {
			return err
		}
		if err := walletstatedb.SetLastReplayedBlock(end); err != nil {
			log.Printf("Error updating replay checkpoint: %v", err)
		}

		if ipcServer != nil {
			ipcServer.BroadcastProgress(ipc.ReplayProgressUpdate{
				FromBlock:    from,
				CurrentBlock: end,
				LatestBlock:  latest,
				Opens:        len(s.API.Wallet.KnownLines()),
				Transfers:    s.API.Wallet.HistorySize(),
			})
		}
	}

	s.persistState()
	log.Println("Replay complete.")
	logger.Info("Replay complete.")
	return nil
}

func (s *WalletServer) persistState() {
	for _, lineID := range s.API.Wallet.KnownLines() {
		if err := walletstatedb.PersistHistory(s.API.Wallet, lineID); err != nil {
			log.Printf("Error persisting line %s: %v", lineID.Hex(), err)
		}
	}
}

// StartListening opens the wallet's live subscriptions so confirmations
// arrive between replay rounds.
func (s *WalletServer) StartListening() error {
	ctx := context.Background()
	if _, err := s.API.Wallet.ListenOpensAsIssuer(ctx); err != nil {
		return err
	}
	if _, err := s.API.Wallet.ListenAsSender(ctx); err != nil {
		return err
	}
	if _, err := s.API.Wallet.ListenAsReceiver(ctx); err != nil {
		return err
	}
	return nil
}

// StartReplayProcess runs replay on a ticker for HTTP mode, where there is
// no server loop driving it.
func (s *WalletServer) StartReplayProcess() {
	if err := s.ReplayChain(nil); err != nil {
		log.Printf("Error during initial replay: %v", err)
	}

	replayTicker := time.NewTicker(replayInterval())
	defer replayTicker.Stop()

	for range replayTicker.C {
		if !engaged {
			if err := s.ReplayChain(nil); err != nil {
				log.Printf("Error during periodic replay: %v", err)
			}
		}
	}
}

func (s *WalletServer) serverLoop() error {
	replayTicker := time.NewTicker(replayInterval())
	defer replayTicker.Stop()

	ipcServer, err := ipc.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create IPC server: %v", err)
	}
	defer ipcServer.Close()

	if err := s.StartListening(); err != nil {
		log.Printf("Error starting live subscriptions: %v", err)
	}

	if err := s.ReplayChain(ipcServer); err != nil {
		log.Printf("Error during initial replay: %v", err)
	}

	go s.HandleIPCCommands(ipcServer)

	userCommandChannel := make(chan string)
	go ListenForUserCommands(userCommandChannel)

	for {
		select {
		case <-replayTicker.C:
			if !engaged {
				engaged = true
				if err := s.ReplayChain(ipcServer); err != nil {
					log.Printf("Error during periodic replay: %v", err)
				}
				engaged = false
			}

		case command := <-userCommandChannel:
			if err := s.HandleCommand(command); err != nil {
				log.Printf("Error handling command: %v", err)
			}

			if exiting {
				return nil // Exit the server loop if we're in the process of shutting down
			}
		}
	}
}

func (s *WalletServer) HandleIPCCommands(server *ipc.Server) {
	for cmd := range server.Commands() {
		var result interface{}
		var err error

		switch cmd.Command {
		case "open-line":
			if len(cmd.Args) != 4 {
				err = fmt.Errorf("open-line expects maturity, unit, receiver, amount")
			} else {
				result, err = s.OpenLineAPI(cmd.Args[0], cmd.Args[1], cmd.Args[2], cmd.Args[3])
			}
		case "transfer-line":
			if len(cmd.Args) != 3 {
				err = fmt.Errorf("transfer-line expects line id, amount, recipient")
			} else {
				result, err = s.TransferLineAPI(cmd.Args[0], cmd.Args[1], cmd.Args[2])
			}
		case "close-line":
			if len(cmd.Args) != 3 {
				err = fmt.Errorf("close-line expects maturity, unit, total amount")
			} else {
				result, err = s.CloseLineAPI(cmd.Args[0], cmd.Args[1], cmd.Args[2])
			}
		case "withdraw":
			if len(cmd.Args) != 2 {
				err = fmt.Errorf("withdraw expects line id and unit")
			} else {
				result, err = s.WithdrawAPI(cmd.Args[0], cmd.Args[1])
			}
		case "balance":
			if len(cmd.Args) != 1 {
				err = fmt.Errorf("balance expects a line id")
			} else {
				result, err = s.BalanceAPI(cmd.Args[0])
			}
		case "get-line":
			if len(cmd.Args) != 1 {
				err = fmt.Errorf("get-line expects a line id")
			} else {
				result, err = s.GetLineAPI(cmd.Args[0])
			}
		case "line-history":
			if len(cmd.Args) != 1 {
				err = fmt.Errorf("line-history expects a line id")
			} else {
				result, err = s.LineHistoryAPI(cmd.Args[0])
			}
		case "pending":
			if len(cmd.Args) != 1 {
				err = fmt.Errorf("pending expects a line id")
			} else {
				result, err = s.PendingAPI(cmd.Args[0])
			}
		case "list-lines":
			result, err = s.ListLinesAPI()
		case "exit":
			err = s.ExitWalletCMD()
		default:
			err = fmt.Errorf("unknown command: %s", cmd.Command)
		}

		response := ipc.Response{ID: cmd.ID, Result: result}
		if err != nil {
			response.Error = err.Error()
		}
		server.SendResponse(cmd.ID, response)
	}
}
