// Package routing implements the message routing service: validates
// sender/recipient against the team registry, enriches the outgoing
// text with a reply-reminder footer, and CCs team-lead on
// peer-to-peer messages so the lead retains full visibility.
package routing

import (
	"errors"
	"fmt"

	"github.com/relayfleet/relayfleet/internal/messaging"
	"github.com/relayfleet/relayfleet/internal/teams"
)

var (
	ErrEmptyContent   = errors.New("message content must not be empty")
	ErrEmptySummary   = errors.New("message summary must not be empty")
	ErrEmptySender    = errors.New("sender must not be empty")
	ErrEmptyRecipient = errors.New("recipient must not be empty")
	ErrSelfMessage    = errors.New("cannot send a message to yourself")
)

// Service validates and delivers messages between team members,
// writing through the messaging store and the team registry.
type Service struct {
	teams    *teams.Store
	messages *messaging.Store
}

// New returns a Service backed by the given stores.
func New(teamStore *teams.Store, messageStore *messaging.Store) *Service {
	return &Service{teams: teamStore, messages: messageStore}
}

// Send validates team/sender/recipient, enriches content with a
// system-reminder footer naming sender, writes one message to
// recipient's inbox, and — when neither endpoint is team-lead — CCs
// the same enriched text to team-lead's inbox with a
// "[CC sender->recipient] summary" label.
func (s *Service) Send(team, sender, recipient, content, summary string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if summary == "" {
		return ErrEmptySummary
	}
	if sender == "" {
		return ErrEmptySender
	}
	if recipient == "" {
		return ErrEmptyRecipient
	}
	if sender == recipient {
		return ErrSelfMessage
	}

	cfg, err := s.teams.Read(team)
	if err != nil {
		return err
	}
	if _, ok := cfg.Member(sender); !ok {
		return fmt.Errorf("sender %q is not a member of team %q", sender, team)
	}
	if _, ok := cfg.Member(recipient); !ok {
		return fmt.Errorf("recipient %q is not a member of team %q", recipient, team)
	}

	enriched := enrich(content, sender)
	msg := messaging.New(sender, enriched).WithSummary(summary)
	if err := s.messages.Append(team, recipient, msg); err != nil {
		return err
	}

	if sender != teams.LeadAgentName && recipient != teams.LeadAgentName {
		ccSummary := fmt.Sprintf("[CC %s->%s] %s", sender, recipient, summary)
		cc := messaging.New(sender, enriched).WithSummary(ccSummary)
		if err := s.messages.Append(team, teams.LeadAgentName, cc); err != nil {
			return err
		}
	}
	return nil
}

// enrich appends the reply-reminder footer, matching the verbatim
// wording teammates are expected to parse and act on.
func enrich(content, sender string) string {
	return content + "\n\n" +
		"<system_reminder>" +
		"This message was sent from " + sender + ". " +
		"Use your send_message tool to respond." +
		"</system_reminder>"
}
