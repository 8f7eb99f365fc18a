// liquidstake-cli is a command-line client for interacting with a
// liquidstaked node.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/casperliquid/liquidstake/config"
	"github.com/casperliquid/liquidstake/internal/rpcclient"
	"github.com/casperliquid/liquidstake/internal/wallet"
	"github.com/casperliquid/liquidstake/pkg/crypto"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/holiman/uint256"
	"golang.org/x/term"
)

// keystoreDir returns the keystore path matching liquidstaked's layout:
// <datadir>/<network>/keystore
func keystoreDir(dataDir, network string) string {
	return filepath.Join(dataDir, network, "keystore")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:8545"
	dataDir := config.DefaultDataDir()
	network := "mainnet"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	// Set address HRP based on network.
	if network == "testnet" {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	ksDir := keystoreDir(dataDir, network)
	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "info":
		cmdInfo(client)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "allowance":
		cmdAllowance(client, cmdArgs)
	case "supply":
		cmdSupply(client)
	case "commitment":
		cmdCommitment(client)
	case "nonce":
		cmdNonce(client, cmdArgs)
	case "events":
		cmdEvents(client, cmdArgs)
	case "stake":
		cmdStake(client, cmdArgs, ksDir)
	case "unstake":
		cmdUnstake(client, cmdArgs, ksDir)
	case "transfer":
		cmdTransfer(client, cmdArgs, ksDir)
	case "approve":
		cmdApprove(client, cmdArgs, ksDir)
	case "transfer-from":
		cmdTransferFrom(client, cmdArgs, ksDir)
	case "wallet":
		cmdWallet(cmdArgs, ksDir)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: liquidstake-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8545)
  --datadir <path>    Data directory (default: ~/.liquidstake)
  --network <net>     mainnet (default) or testnet

Commands:
  info                            Show token info
  supply                          Show total supply
  balance <address>               Show account balance
  allowance <owner> <spender>     Show remaining allowance
  commitment                      Show the ledger state commitment
  nonce <address>                 Show an account's next request nonce
  events [--account <addr>] [--from N] [--limit N]
                                  List ledger events

  stake --wallet <w> --amount <amt>
                                  Stake CSPR, minting stCSPR 1:1
  unstake --wallet <w> --amount <amt>
                                  Burn stCSPR, releasing CSPR 1:1
  transfer --wallet <w> --to <addr> --amount <amt>
                                  Transfer stCSPR
  approve --wallet <w> --spender <addr> --amount <amt>
                                  Set a spending allowance
  transfer-from --wallet <w> --owner <addr> --to <addr> --amount <amt>
                                  Spend a granted allowance

  wallet create --name <n>        Create a new wallet
  wallet import --name <n> --mnemonic "..."
                                  Import wallet from mnemonic
  wallet list                     List wallets
  wallet accounts --wallet <w>    List wallet accounts
  wallet new-account --wallet <w> Derive the next account
  wallet export-key --wallet <w>  Export a private key

All signing commands accept --account <index> to select a derived
account (default 0). Amounts are decimal token values (e.g. 1.5).
`)
}

// ── Read commands ───────────────────────────────────────────────────────

func cmdInfo(client *rpcclient.Client) {
	info, err := client.GetInfo()
	if err != nil {
		fatal("ledger_getInfo: %v", err)
	}

	fmt.Printf("Name:     %s\n", info.Name)
	fmt.Printf("Symbol:   %s\n", info.Symbol)
	fmt.Printf("Decimals: %d\n", info.Decimals)
	fmt.Printf("Supply:   %s %s\n", formatAmount(info.TotalSupply, info.Decimals), info.Symbol)
	fmt.Printf("Custody:  %s CSPR\n", formatAmount(info.Custody, info.Decimals))
	fmt.Printf("Accounts: %d\n", info.Accounts)
}

func cmdSupply(client *rpcclient.Client) {
	info, err := client.GetInfo()
	if err != nil {
		fatal("ledger_getInfo: %v", err)
	}
	fmt.Printf("%s %s\n", formatAmount(info.TotalSupply, info.Decimals), info.Symbol)
}

func cmdBalance(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: liquidstake-cli balance <address>")
	}

	info, err := client.GetInfo()
	if err != nil {
		fatal("ledger_getInfo: %v", err)
	}
	bal, err := client.BalanceOf(args[0])
	if err != nil {
		fatal("ledger_balanceOf: %v", err)
	}
	fmt.Printf("%s %s\n", formatAmount(bal, info.Decimals), info.Symbol)
}

func cmdAllowance(client *rpcclient.Client, args []string) {
	if len(args) < 2 {
		fatal("Usage: liquidstake-cli allowance <owner> <spender>")
	}

	info, err := client.GetInfo()
	if err != nil {
		fatal("ledger_getInfo: %v", err)
	}
	al, err := client.Allowance(args[0], args[1])
	if err != nil {
		fatal("ledger_allowance: %v", err)
	}
	fmt.Printf("%s %s\n", formatAmount(al, info.Decimals), info.Symbol)
}

func cmdCommitment(client *rpcclient.Client) {
	root, err := client.Commitment()
	if err != nil {
		fatal("ledger_getCommitment: %v", err)
	}
	fmt.Println(root)
}

func cmdNonce(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: liquidstake-cli nonce <address>")
	}

	addr, err := types.ParseAddress(args[0])
	if err != nil {
		fatal("invalid address: %v", err)
	}
	nonce, err := client.Nonce(addr)
	if err != nil {
		fatal("ledger_getNonce: %v", err)
	}
	fmt.Println(nonce)
}

func cmdEvents(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	account := fs.String("account", "", "Only events touching this address")
	from := fs.Uint64("from", 0, "Starting sequence number")
	limit := fs.Int("limit", 25, "Maximum events to list")
	fs.Parse(args)

	info, err := client.GetInfo()
	if err != nil {
		fatal("ledger_getInfo: %v", err)
	}
	res, err := client.Events(*account, *from, *limit)
	if err != nil {
		fatal("events_list: %v", err)
	}

	if len(res.Records) == 0 {
		fmt.Println("No events.")
		return
	}

	for _, rec := range res.Records {
		ts := rec.Timestamp.UTC().Format("2006-01-02 15:04:05")
		amount := ""
		if rec.Amount != nil {
			amount = formatAmount(rec.Amount.Dec(), info.Decimals)
		}
		switch rec.Kind {
		case "staked", "unstaked":
			fmt.Printf("[%d] %s  %-8s %s  %s\n", rec.Seq, ts, rec.Kind, rec.Account, amount)
		case "transfer":
			fmt.Printf("[%d] %s  %-8s %s -> %s  %s\n", rec.Seq, ts, rec.Kind, rec.From, rec.To, amount)
		case "approval":
			fmt.Printf("[%d] %s  %-8s %s grants %s  %s\n", rec.Seq, ts, rec.Kind, rec.Owner, rec.Spender, amount)
		default:
			fmt.Printf("[%d] %s  %-8s %s\n", rec.Seq, ts, rec.Kind, amount)
		}
	}
	fmt.Printf("Total events: %d\n", res.Total)
}

// ── Signing commands ────────────────────────────────────────────────────

func cmdStake(client *rpcclient.Client, args []string, ksDir string) {
	fs := flag.NewFlagSet("stake", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	account := fs.Uint("account", 0, "Account index")
	amountStr := fs.String("amount", "", "Amount to stake")
	fs.Parse(args)

	if *walletName == "" || *amountStr == "" {
		fatal("Usage: liquidstake-cli stake --wallet <name> --amount <amt>")
	}

	decimals := tokenDecimals(client)
	units, err := parseAmount(*amountStr, decimals)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	signer := loadSigner(ksDir, *walletName, uint32(*account))
	defer signer.Zero()

	res, err := client.Stake(signer, units)
	if err != nil {
		fatal("ledger_stake: %v", err)
	}

	fmt.Printf("Staked %s\n", formatAmount(units, decimals))
	fmt.Printf("  Account:    %s\n", res.Account)
	fmt.Printf("  Next nonce: %d\n", res.NextNonce)
}

func cmdUnstake(client *rpcclient.Client, args []string, ksDir string) {
	fs := flag.NewFlagSet("unstake", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	account := fs.Uint("account", 0, "Account index")
	amountStr := fs.String("amount", "", "Amount to unstake")
	fs.Parse(args)

	if *walletName == "" || *amountStr == "" {
		fatal("Usage: liquidstake-cli unstake --wallet <name> --amount <amt>")
	}

	decimals := tokenDecimals(client)
	units, err := parseAmount(*amountStr, decimals)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	signer := loadSigner(ksDir, *walletName, uint32(*account))
	defer signer.Zero()

	res, err := client.Unstake(signer, units)
	if err != nil {
		fatal("ledger_unstake: %v", err)
	}

	fmt.Printf("Unstaked %s\n", formatAmount(units, decimals))
	fmt.Printf("  Account:    %s\n", res.Account)
	fmt.Printf("  Next nonce: %d\n", res.NextNonce)
}

func cmdTransfer(client *rpcclient.Client, args []string, ksDir string) {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	account := fs.Uint("account", 0, "Account index")
	to := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to transfer")
	fs.Parse(args)

	if *walletName == "" || *to == "" || *amountStr == "" {
		fatal("Usage: liquidstake-cli transfer --wallet <name> --to <addr> --amount <amt>")
	}
	if _, err := types.ParseAddress(*to); err != nil {
		fatal("invalid recipient: %v", err)
	}

	decimals := tokenDecimals(client)
	units, err := parseAmount(*amountStr, decimals)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	signer := loadSigner(ksDir, *walletName, uint32(*account))
	defer signer.Zero()

	res, err := client.Transfer(signer, *to, units)
	if err != nil {
		fatal("ledger_transfer: %v", err)
	}

	fmt.Printf("Transferred %s to %s\n", formatAmount(units, decimals), *to)
	fmt.Printf("  Next nonce: %d\n", res.NextNonce)
}

func cmdApprove(client *rpcclient.Client, args []string, ksDir string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	account := fs.Uint("account", 0, "Account index")
	spender := fs.String("spender", "", "Spender address")
	amountStr := fs.String("amount", "", "Allowance amount (0 revokes)")
	fs.Parse(args)

	if *walletName == "" || *spender == "" || *amountStr == "" {
		fatal("Usage: liquidstake-cli approve --wallet <name> --spender <addr> --amount <amt>")
	}
	if _, err := types.ParseAddress(*spender); err != nil {
		fatal("invalid spender: %v", err)
	}

	decimals := tokenDecimals(client)
	units, err := parseAmount(*amountStr, decimals)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	signer := loadSigner(ksDir, *walletName, uint32(*account))
	defer signer.Zero()

	res, err := client.Approve(signer, *spender, units)
	if err != nil {
		fatal("ledger_approve: %v", err)
	}

	fmt.Printf("Approved %s for %s\n", formatAmount(units, decimals), *spender)
	fmt.Printf("  Next nonce: %d\n", res.NextNonce)
}

func cmdTransferFrom(client *rpcclient.Client, args []string, ksDir string) {
	fs := flag.NewFlagSet("transfer-from", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	account := fs.Uint("account", 0, "Account index")
	owner := fs.String("owner", "", "Owner address the allowance was granted by")
	to := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to transfer")
	fs.Parse(args)

	if *walletName == "" || *owner == "" || *to == "" || *amountStr == "" {
		fatal("Usage: liquidstake-cli transfer-from --wallet <name> --owner <addr> --to <addr> --amount <amt>")
	}
	if _, err := types.ParseAddress(*owner); err != nil {
		fatal("invalid owner: %v", err)
	}
	if _, err := types.ParseAddress(*to); err != nil {
		fatal("invalid recipient: %v", err)
	}

	decimals := tokenDecimals(client)
	units, err := parseAmount(*amountStr, decimals)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	signer := loadSigner(ksDir, *walletName, uint32(*account))
	defer signer.Zero()

	res, err := client.TransferFrom(signer, *owner, *to, units)
	if err != nil {
		fatal("ledger_transferFrom: %v", err)
	}

	fmt.Printf("Transferred %s from %s to %s\n", formatAmount(units, decimals), *owner, *to)
	fmt.Printf("  Next nonce: %d\n", res.NextNonce)
}

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(args []string, ksDir string) {
	if len(args) < 1 {
		fatal("Usage: liquidstake-cli wallet <create|import|list|accounts|new-account|export-key>")
	}

	switch args[0] {
	case "create":
		cmdWalletCreate(args[1:], ksDir)
	case "import":
		cmdWalletImport(args[1:], ksDir)
	case "list":
		cmdWalletList(ksDir)
	case "accounts":
		cmdWalletAccounts(args[1:], ksDir)
	case "new-account":
		cmdWalletNewAccount(args[1:], ksDir)
	case "export-key":
		cmdWalletExportKey(args[1:], ksDir)
	default:
		fatal("unknown wallet command: %s", args[0])
	}
}

func cmdWalletCreate(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: liquidstake-cli wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	password := readNewPassword()

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}

	addr := deriveAccountAddress(seed, 0)

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("create keystore: %v", err)
	}
	if err := ks.Create(*name, seed, password, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	zero(seed)

	if err := ks.AddAccount(*name, wallet.AccountEntry{
		Index:   0,
		Name:    "Default",
		Address: addr.String(),
	}); err != nil {
		fatal("add account: %v", err)
	}

	fmt.Printf("\nWallet created: %s\n", *name)
	fmt.Printf("Address: %s\n", addr.String())
}

func cmdWalletImport(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (24 words)")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal("Usage: liquidstake-cli wallet import --name <name> --mnemonic \"word1 word2 ...\"")
	}

	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}

	password := readNewPassword()

	seed, err := wallet.SeedFromMnemonic(*mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}

	addr := deriveAccountAddress(seed, 0)

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("create keystore: %v", err)
	}
	if err := ks.Create(*name, seed, password, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	zero(seed)

	if err := ks.AddAccount(*name, wallet.AccountEntry{
		Index:   0,
		Name:    "Default",
		Address: addr.String(),
	}); err != nil {
		fatal("add account: %v", err)
	}

	fmt.Printf("Wallet imported: %s\n", *name)
	fmt.Printf("Address: %s\n", addr.String())
}

func cmdWalletList(ksDir string) {
	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}

	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}

	for _, name := range names {
		fmt.Println(name)
	}
}

func cmdWalletAccounts(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet accounts", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: liquidstake-cli wallet accounts --wallet <name>")
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	accounts, err := ks.ListAccounts(*walletName)
	if err != nil {
		fatal("list accounts: %v", err)
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		return
	}

	for _, acct := range accounts {
		fmt.Printf("  [%d] %-12s %s\n", acct.Index, acct.Name, acct.Address)
	}
}

func cmdWalletNewAccount(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet new-account", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	acctName := fs.String("label", "", "Account label (default: Account <n>)")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: liquidstake-cli wallet new-account --wallet <name> [--label <text>]")
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	seed, err := ks.Load(*walletName, password)
	if err != nil {
		fatal("load wallet: %v", err)
	}

	nextIdx, err := ks.NextIndex(*walletName)
	if err != nil {
		zero(seed)
		fatal("next index: %v", err)
	}

	addr := deriveAccountAddress(seed, nextIdx)
	zero(seed)

	label := *acctName
	if label == "" {
		label = fmt.Sprintf("Account %d", nextIdx)
	}

	if err := ks.AddAccount(*walletName, wallet.AccountEntry{
		Index:   nextIdx,
		Name:    label,
		Address: addr.String(),
	}); err != nil {
		fatal("add account: %v", err)
	}

	fmt.Printf("New account [%d]: %s\n", nextIdx, addr.String())
}

func cmdWalletExportKey(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet export-key", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	output := fs.String("output", "", "Output file path (default: <name>.key)")
	index := fs.Uint("index", 0, "Account index")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: liquidstake-cli wallet export-key --wallet <name> [--output path] [--index 0]")
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	seed, err := ks.Load(*walletName, password)
	if err != nil {
		fatal("load wallet: %v", err)
	}

	master, err := wallet.NewMasterKey(seed)
	zero(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}

	hdKey, err := master.DeriveAccount(uint32(*index))
	if err != nil {
		fatal("derive account key: %v", err)
	}

	privBytes := hdKey.PrivateKeyBytes()
	if privBytes == nil {
		fatal("no private key available")
	}

	pubBytes := hdKey.PublicKeyBytes()
	addr := hdKey.Address()

	privHex := hex.EncodeToString(privBytes)
	zero(privBytes)

	outPath := *output
	if outPath == "" {
		outPath = *walletName + ".key"
	}

	if err := os.WriteFile(outPath, []byte(privHex+"\n"), 0600); err != nil {
		fatal("write key file: %v", err)
	}

	fmt.Printf("Exported key to: %s\n", outPath)
	fmt.Printf("  Path:    m/44'/506'/0'/0/%d\n", *index)
	fmt.Printf("  PubKey:  %s\n", hex.EncodeToString(pubBytes))
	fmt.Printf("  Address: %s\n", addr.String())
}

// ── Wallet helpers ──────────────────────────────────────────────────────

// loadSigner prompts for the wallet password and returns the signing key
// for the given account index. The caller must Zero() it.
func loadSigner(ksDir, walletName string, index uint32) *crypto.PrivateKey {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	seed, err := ks.Load(walletName, password)
	if err != nil {
		fatal("load wallet: %v", err)
	}

	master, err := wallet.NewMasterKey(seed)
	zero(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}

	hdKey, err := master.DeriveAccount(index)
	if err != nil {
		fatal("derive account: %v", err)
	}

	signer, err := hdKey.Signer()
	if err != nil {
		fatal("derive signer: %v", err)
	}
	return signer
}

// deriveAccountAddress derives the address at the given BIP-44 index.
func deriveAccountAddress(seed []byte, index uint32) types.Address {
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}
	hdKey, err := master.DeriveAccount(index)
	if err != nil {
		fatal("derive account: %v", err)
	}
	return hdKey.Address()
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ── Formatting helpers ──────────────────────────────────────────────────

// tokenDecimals fetches the token precision from the node.
func tokenDecimals(client *rpcclient.Client) uint8 {
	info, err := client.GetInfo()
	if err != nil {
		fatal("ledger_getInfo: %v", err)
	}
	return info.Decimals
}

// parseAmount converts a decimal token value ("1.5") to a raw unit
// string ("1500000000" at 9 decimals).
func parseAmount(s string, decimals uint8) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return "", fmt.Errorf("negative amount")
	}

	parts := strings.SplitN(s, ".", 2)
	whole := parts[0]
	if whole == "" {
		whole = "0"
	}

	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > int(decimals) {
		return "", fmt.Errorf("too many decimal places (max %d)", decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		combined = "0"
	}

	v, err := uint256.FromDecimal(combined)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}
	return v.Dec(), nil
}

// formatAmount converts a raw unit string to a human-readable decimal
// token value.
func formatAmount(units string, decimals uint8) string {
	v, err := uint256.FromDecimal(units)
	if err != nil {
		return units
	}
	if decimals == 0 {
		return v.Dec()
	}

	div := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	quo := new(uint256.Int).Div(v, div)
	rem := new(uint256.Int).Mod(v, div)

	fracStr := rem.Dec()
	for len(fracStr) < int(decimals) {
		fracStr = "0" + fracStr
	}
	return quo.Dec() + "." + fracStr
}

// ── Password helpers ────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// readNewPassword prompts twice and requires both entries to match.
func readNewPassword() []byte {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	return password
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
