package matchers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mailscrape/weboutlook/internal/config"
)

type Message struct {
	Id   string
	Body []byte
}

// Matches returns true if the message satisfies all configured matcher groups.
// Groups combine with AND; patterns within a group combine with OR.
func Matches(matchers *config.MessageMatchers, data Message) (bool, error) {
	if matchers.IsEmpty() {
		return true, nil
	}
	if len(matchers.IdRegex) > 0 {
		ok, err := matchAnyRegex(matchers.IdRegex, data.Id)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if len(matchers.BodyRegex) > 0 {
		ok, err := matchAnyRegex(matchers.BodyRegex, string(data.Body))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchAnyRegex(patterns []string, value string) (bool, error) {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		if re.MatchString(value) {
			return true, nil
		}
	}
	return false, nil
}
