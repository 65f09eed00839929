// Package host описывает, что расширение защиты получает от игрового
// сервера (игроки, мир, регионы, события и команды), и содержит небольшой
// хост в памяти для песочницы и тестов.
package host

import (
	"strings"
	"sync"
)

// Player игрок, совершающий действие.
type Player interface {
	Name() string
	HasPermission(perm string) bool
	SendSuccessMessage(msg string)
	SendErrorMessage(msg string)
	SendInfoMessage(msg string)
}

// MessageKind цвет сообщения игроку
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
	MessageInfo    MessageKind = "info"
)

// Message одна строка, отправленная игроку
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}

// Group именованный набор прав. "*" даёт всё.
type Group struct {
	Name        string
	permissions map[string]struct{}
}

// NewGroup создаёт группу; имена прав без учёта регистра.
func NewGroup(name string, perms ...string) *Group {
	g := &Group{Name: name, permissions: make(map[string]struct{}, len(perms))}
	for _, p := range perms {
		g.permissions[strings.ToLower(p)] = struct{}{}
	}
	return g
}

// HasPermission есть ли у группы право perm
func (g *Group) HasPermission(perm string) bool {
	if g == nil {
		return false
	}
	if _, ok := g.permissions["*"]; ok {
		return true
	}
	_, ok := g.permissions[strings.ToLower(perm)]
	return ok
}

// Actor простой Player: имя, группа и входящие сообщения.
type Actor struct {
	name  string
	group *Group

	mu    sync.Mutex
	inbox []Message
}

// NewActor создаёт игрока в группе
func NewActor(name string, group *Group) *Actor {
	return &Actor{name: name, group: group}
}

func (a *Actor) Name() string                   { return a.name }
func (a *Actor) HasPermission(perm string) bool { return a.group.HasPermission(perm) }
func (a *Actor) SendSuccessMessage(msg string)  { a.send(MessageSuccess, msg) }
func (a *Actor) SendErrorMessage(msg string)    { a.send(MessageError, msg) }
func (a *Actor) SendInfoMessage(msg string)     { a.send(MessageInfo, msg) }

func (a *Actor) send(kind MessageKind, text string) {
	a.mu.Lock()
	a.inbox = append(a.inbox, Message{Kind: kind, Text: text})
	a.mu.Unlock()
}

// Messages всё, что игроку отправлено до сих пор
func (a *Actor) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.inbox...)
}
