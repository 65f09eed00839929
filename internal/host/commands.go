package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrPermissionDenied = errors.New("permission denied")
)

// CommandArgs то, что получает обработчик команды
type CommandArgs struct {
	Ctx        context.Context
	Player     Player
	Parameters []string
}

// CommandHandler выполняет команду чата
type CommandHandler func(args CommandArgs)

// Command команда чата с алиасами. Names[0] основное имя.
type Command struct {
	Names      []string
	Permission string
	HelpText   string
	Handler    CommandHandler
}

// CommandRegistry таблица команд чата хоста.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*Command // алиас -> команда
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]*Command)}
}

// Register регистрирует команду под всеми её именами. Занятое имя - ошибка.
func (r *CommandRegistry) Register(cmd Command) error {
	if len(cmd.Names) == 0 || cmd.Handler == nil {
		return fmt.Errorf("command needs a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range cmd.Names {
		if _, taken := r.commands[strings.ToLower(name)]; taken {
			return fmt.Errorf("command %q already registered", name)
		}
	}
	c := cmd
	for _, name := range cmd.Names {
		r.commands[strings.ToLower(name)] = &c
	}
	return nil
}

// Unregister снимает команды, которым принадлежат имена, вместе с алиасами.
func (r *CommandRegistry) Unregister(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		cmd, ok := r.commands[strings.ToLower(name)]
		if !ok {
			continue
		}
		for _, alias := range cmd.Names {
			delete(r.commands, strings.ToLower(alias))
		}
	}
}

// Names основные имена зарегистрированных команд
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*Command]bool)
	var names []string
	for _, cmd := range r.commands {
		if !seen[cmd] {
			seen[cmd] = true
			names = append(names, cmd.Names[0])
		}
	}
	sort.Strings(names)
	return names
}

// Execute разбирает строку чата ("/blacktile 5 Arena") и выполняет команду.
func (r *CommandRegistry) Execute(ctx context.Context, player Player, line string) error {
	fields := ParseParameters(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		player.SendErrorMessage("Invalid command entered. Type /help for a list of valid commands.")
		return ErrUnknownCommand
	}
	return r.Run(ctx, player, fields[0], fields[1:])
}

// Run выполняет команду по имени с уже разобранными параметрами.
func (r *CommandRegistry) Run(ctx context.Context, player Player, name string, params []string) error {
	r.mu.RLock()
	cmd, ok := r.commands[strings.ToLower(strings.TrimPrefix(name, "/"))]
	r.mu.RUnlock()
	if !ok {
		player.SendErrorMessage("Invalid command entered. Type /help for a list of valid commands.")
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if cmd.Permission != "" && !player.HasPermission(cmd.Permission) {
		player.SendErrorMessage("You do not have access to this command.")
		return ErrPermissionDenied
	}

	cmd.Handler(CommandArgs{Ctx: ctx, Player: player, Parameters: params})
	return nil
}

// ParseParameters делит строку по пробелам, "текст в кавычках" остаётся одним параметром.
func ParseParameters(line string) []string {
	var (
		params  []string
		current strings.Builder
		quoted  bool
		hasArg  bool
	)
	flush := func() {
		if hasArg {
			params = append(params, current.String())
		}
		current.Reset()
		hasArg = false
	}

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			hasArg = true
		case (r == ' ' || r == '\t') && !quoted:
			flush()
		default:
			current.WriteRune(r)
			hasArg = true
		}
	}
	flush()
	return params
}
