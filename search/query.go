// Package search indexes the session's text messages and answers
// /find queries over them.
package search

import (
	"strconv"
	"strings"
)

const defaultLimit = 10

// Query decouples the raw chat input from the index engine.
// Example: /find meeting notes --user alice --limit 5
type Query struct {
	RawInput string
	Terms    string
	User     string
	Limit    int
}

// ParseQuery extracts command-line style arguments from a raw input.
func ParseQuery(input string) *Query {
	query := &Query{
		RawInput: input,
		Limit:    defaultLimit,
	}

	parts := strings.Fields(input)
	var terms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			value := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "user":
				query.User = value
			case "limit":
				if n, err := strconv.Atoi(value); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++
			continue
		}

		// Leading slash commands are not search terms
		if !strings.HasPrefix(part, "/") {
			terms = append(terms, part)
		}
	}

	query.Terms = strings.Join(terms, " ")
	return query
}
