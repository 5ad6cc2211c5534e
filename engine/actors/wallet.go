package actors

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nbd-wtf/go-nostr/nip06"
	"github.com/sasha-s/go-deadlock"
	"nostrdesk/engine/library"
)

// Wallet is the site identity persisted in rootDir/wallet.dat.
type Wallet struct {
	PrivateKey string
	SeedWords  string
	Account    library.Account
}

// Keys returns the signing keys of the wallet.
func (w Wallet) Keys() library.Keys {
	return library.Keys{Secret: w.PrivateKey, Public: w.Account}
}

var currentWallet Wallet
var currentWalletMutex = &deadlock.Mutex{}

// MyWallet returns the current Wallet or creates a new one if there isn't one already
func MyWallet() Wallet {
	currentWalletMutex.Lock()
	defer currentWalletMutex.Unlock()
	if len(currentWallet.PrivateKey) == 0 {
		//try to restore wallet from disk
		if w, ok := getWalletFromDisk(); ok {
			currentWallet = w
		} else {
			library.LogCLI("Generating a new site key, the seed words are written to wallet.dat", 4)
			w, err := makeNewWallet()
			if err != nil {
				library.LogCLI(err.Error(), 0)
			}
			currentWallet = w
			fmt.Printf("\n\n~NEW SITE KEY~\nPublic Key: %s\n\n", currentWallet.Account)
		}
		if err := persistCurrentWallet(); err != nil {
			library.LogCLI(err.Error(), 1)
		}
	}
	return currentWallet
}

// ImportWallet replaces the site key with an existing hex private key.
func ImportWallet(privateKey string) (Wallet, error) {
	account, err := getPubKey(privateKey)
	if err != nil {
		return Wallet{}, err
	}
	currentWalletMutex.Lock()
	defer currentWalletMutex.Unlock()
	currentWallet = Wallet{PrivateKey: privateKey, Account: account}
	return currentWallet, persistCurrentWallet()
}

func makeNewWallet() (Wallet, error) {
	seedWords, err := nip06.GenerateSeedWords()
	if err != nil {
		return Wallet{}, err
	}
	seed := nip06.SeedFromWords(seedWords)
	sk, err := nip06.PrivateKeyFromSeed(seed)
	if err != nil {
		return Wallet{}, err
	}
	account, err := getPubKey(sk)
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{
		PrivateKey: sk,
		SeedWords:  seedWords,
		Account:    account,
	}, nil
}

func getPubKey(privateKey string) (library.Account, error) {
	if !library.IsValid32ByteHex(privateKey) {
		return "", fmt.Errorf("site key: %w", library.ErrInvalidKey)
	}
	keyb, err := hex.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("decoding key from hex: %w", library.ErrInvalidKey)
	}
	_, pubkey := btcec.PrivKeyFromBytes(keyb)
	return hex.EncodeToString(pubkey.SerializeCompressed()[1:]), nil
}

func walletFile() string {
	return MakeOrGetConfig().GetString("rootDir") + "wallet.dat"
}

func persistCurrentWallet() error {
	bytes, err := json.Marshal(currentWallet)
	if err != nil {
		return err
	}
	return os.WriteFile(walletFile(), bytes, 0600)
}

func getWalletFromDisk() (w Wallet, ok bool) {
	file, err := os.ReadFile(walletFile())
	if err != nil {
		library.LogCLI(fmt.Sprintf("Error getting wallet file: %s", err.Error()), 3)
		return Wallet{}, false
	}
	err = json.Unmarshal(file, &w)
	if err != nil {
		library.LogCLI(fmt.Sprintf("Error parsing wallet file: %s", err.Error()), 2)
		return Wallet{}, false
	}
	if account, err := getPubKey(w.PrivateKey); err != nil || account != w.Account {
		library.LogCLI("wallet file does not hold a usable key", 2)
		return Wallet{}, false
	}
	return w, true
}
