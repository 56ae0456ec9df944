// Command store_inspect dumps the three shared-store keys of a chat
// store directory as tables. Opens the database read-only so it can run
// next to a live client.
package main

import (
	"fmt"
	"log"
	"os"

	"chat-sync/store"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type config struct {
	StorePath string `envconfig:"CHAT_STORE_PATH" required:"true"`
	Truncate  int    `envconfig:"TRUNCATE" default:"60"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Config error: ", err)
	}

	opts := badger.DefaultOptions(cfg.StorePath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if err := db.View(func(txn *badger.Txn) error {
		if err := dumpMessages(txn, cfg.Truncate); err != nil {
			return err
		}
		if err := dumpUsers(txn); err != nil {
			return err
		}
		return dumpTyping(txn)
	}); err != nil {
		log.Fatal(err)
	}
}

func dumpMessages(txn *badger.Txn, truncate int) error {
	value, err := readKey(txn, store.KeyMessages)
	if err != nil || value == nil {
		return err
	}
	messages, err := store.DecodeMessages(value)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", store.KeyMessages, err)
	}

	table := newTable([]string{"ID", "Timestamp", "User", "Kind", "Content"})
	for _, m := range messages {
		kind, content := "TEXT", m.Text
		if m.Image != "" {
			kind, content = "IMAGE", fmt.Sprintf("data url, %d chars", len(m.Image))
		}
		if len(content) > truncate {
			content = content[:truncate] + "..."
		}
		displayID := m.ID
		if len(displayID) > 8 {
			displayID = displayID[:8]
		}
		table.Append([]string{
			displayID,
			m.Timestamp.Format("15:04:05"),
			m.User,
			kind,
			content,
		})
	}
	fmt.Printf("%s (%d entries)\n", store.KeyMessages, len(messages))
	table.Render()
	return nil
}

func dumpUsers(txn *badger.Txn) error {
	value, err := readKey(txn, store.KeyUsers)
	if err != nil || value == nil {
		return err
	}
	users, err := store.DecodeUsers(value)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", store.KeyUsers, err)
	}

	table := newTable([]string{"#", "User"})
	for i, u := range users {
		table.Append([]string{fmt.Sprintf("%d", i+1), u})
	}
	fmt.Printf("%s (%d entries)\n", store.KeyUsers, len(users))
	table.Render()
	return nil
}

func dumpTyping(txn *badger.Txn) error {
	value, err := readKey(txn, store.KeyTyping)
	if err != nil || value == nil {
		return err
	}
	marker, err := store.DecodeTyping(value)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", store.KeyTyping, err)
	}

	table := newTable([]string{"User", "Typing"})
	table.Append([]string{marker.User, fmt.Sprintf("%t", marker.Typing)})
	fmt.Println(store.KeyTyping)
	table.Render()
	return nil
}

// readKey returns nil without error when the key is absent; a fresh
// store simply has nothing under it yet.
func readKey(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		fmt.Printf("%s: <absent>\n", key)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
