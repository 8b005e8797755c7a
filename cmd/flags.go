package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/courseview/internal/progress"
)

// bindFlags binds each flag to its configuration key on the global viper.
func bindFlags(cmd *cobra.Command, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := cmd.Flags().Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// choiceValue is a string flag restricted to a fixed set of values.
type choiceValue struct {
	value   string
	choices []string
}

var _ pflag.Value = (*choiceValue)(nil)

func newChoiceValue(def string, choices ...string) *choiceValue {
	return &choiceValue{value: def, choices: choices}
}

func (c *choiceValue) String() string { return c.value }

func (c *choiceValue) Type() string { return "string" }

func (c *choiceValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, choice := range c.choices {
		if s == choice {
			c.value = s
			return nil
		}
	}
	return fmt.Errorf("invalid value %q, must be one of: %s%s",
		s, strings.Join(c.choices, ", "), suggest(s, c.choices))
}

// suggest returns a "did you mean" hint for a near miss.
func suggest(input string, choices []string) string {
	for _, choice := range choices {
		if strings.HasPrefix(choice, input) || strings.HasPrefix(input, choice) {
			return fmt.Sprintf(" (did you mean %q?)", choice)
		}
	}
	return ""
}

// parseAssignment splits "index=bool" as used by progress --set. The left
// side may also be a full progress key of moduleID, such as
// modulo1_lesson_2, as printed in the KEY column.
func parseAssignment(moduleID, s string) (int, bool, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return 0, false, fmt.Errorf("expected <index>=<true|false>, got %q", s)
	}
	key = strings.TrimSpace(key)

	index, err := strconv.Atoi(key)
	if err != nil {
		keyModule, keyIndex, isKey := progress.ParseKey(key)
		switch {
		case !isKey:
			return 0, false, fmt.Errorf("lesson index must be a non-negative integer, got %q", key)
		case keyModule != moduleID:
			return 0, false, fmt.Errorf("key %q belongs to module %q, not %q", key, keyModule, moduleID)
		}
		index = keyIndex
	}
	if index < 0 {
		return 0, false, fmt.Errorf("lesson index must be a non-negative integer, got %q", key)
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "sim":
		return index, true, nil
	case "false", "0", "no", "nao", "não":
		return index, false, nil
	default:
		return 0, false, fmt.Errorf("completion must be true or false, got %q", value)
	}
}
