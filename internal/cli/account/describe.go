package account

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vagali-dev/vagali/internal/cli/client"
	"github.com/vagali-dev/vagali/internal/cli/session"
)

// Describe renders err for the terminal. Field errors are shown verbatim,
// one per line.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var (
		inputErr      *session.InputError
		validationErr *client.ValidationError
		authErr       *client.AuthError
		networkErr    *client.NetworkError
		notFoundErr   *client.NotFoundError
		serverErr     *client.ServerError
	)

	switch {
	case errors.As(err, &inputErr):
		lines := make([]string, 0, len(inputErr.Fields))
		for _, name := range sortedKeys(inputErr.Fields) {
			lines = append(lines, fmt.Sprintf("%s: %s", name, inputErr.Fields[name]))
		}
		return strings.Join(lines, "\n")

	case errors.As(err, &validationErr):
		var lines []string
		if validationErr.Detail != "" {
			lines = append(lines, validationErr.Detail)
		}
		lines = append(lines, validationErr.NonField...)
		for _, name := range validationErr.FieldNames() {
			lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(validationErr.Fields[name], " ")))
		}
		if len(lines) == 0 {
			return "The server rejected the request."
		}
		return strings.Join(lines, "\n")

	case errors.As(err, &authErr):
		if authErr.Detail != "" {
			return authErr.Detail
		}
		return "Your session is no longer valid. Please log in again."

	case errors.As(err, &networkErr):
		return "Could not reach the VagALI server. Check your connection and try again."

	case errors.As(err, &notFoundErr):
		return "Not found."

	case errors.As(err, &serverErr):
		return "The server had a problem. Please try again later."

	case errors.Is(err, session.ErrMissingToken):
		return "Login succeeded but the server did not return a token. Please contact support."

	case errors.Is(err, session.ErrLoginInProgress):
		return "A login is already in progress."

	default:
		return err.Error()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
