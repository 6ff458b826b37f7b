package discord

import (
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Messenger is the slice of *discordgo.Session the publisher needs.
type Messenger interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// FooterPrefix marks embeds owned by the bot. Keyed panels carry
// "FooterPrefix <key>" in their footer so they can be found after a restart.
const FooterPrefix = "h2mm"

const codeUnknownMessage = 10008

// Publisher keeps one live message per key (a queue panel, a match card)
// and edits it in place.
type Publisher struct {
	api   Messenger
	botID func() string
	log   *zap.Logger

	msgIDs sync.Map // channelID|key -> messageID
	locks  sync.Map // channelID|key -> *sync.Mutex
}

func NewPublisher(api Messenger, botID func() string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if botID == nil {
		botID = func() string { return "" }
	}
	return &Publisher{api: api, botID: botID, log: log}
}

// SessionBotID reads the bot user from session state once it is ready.
func SessionBotID(s *discordgo.Session) func() string {
	return func() string {
		if s.State != nil && s.State.User != nil {
			return s.State.User.ID
		}
		return ""
	}
}

func slot(channelID, key string) string { return channelID + "|" + key }

// FooterFor is the footer text a keyed panel must carry.
func FooterFor(key string) string { return FooterPrefix + " " + key }

func (p *Publisher) lock(channelID, key string) *sync.Mutex {
	v, _ := p.locks.LoadOrStore(slot(channelID, key), &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (p *Publisher) remembered(channelID, key string) (string, bool) {
	v, ok := p.msgIDs.Load(slot(channelID, key))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Remember pins messageID as the panel for key.
func (p *Publisher) Remember(channelID, key, messageID string) {
	if channelID != "" && messageID != "" {
		p.msgIDs.Store(slot(channelID, key), messageID)
	}
}

// Forget drops the panel for key so the next publish creates a new message.
func (p *Publisher) Forget(channelID, key string) {
	p.msgIDs.Delete(slot(channelID, key))
}

func ownedBy(m *discordgo.Message, key string) bool {
	if len(m.Embeds) == 0 || m.Embeds[0].Footer == nil {
		return false
	}
	return strings.TrimSpace(m.Embeds[0].Footer.Text) == FooterFor(key)
}

// find looks for a previous panel for key in the recent channel history.
func (p *Publisher) find(channelID, key string) (string, bool) {
	msgs, err := p.api.ChannelMessages(channelID, 50, "", "", "")
	if err != nil {
		p.log.Warn("history lookup failed", zap.String("channel", channelID), zap.Error(err))
		return "", false
	}
	bot := p.botID()
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if bot != "" && (m.Author == nil || m.Author.ID != bot) {
			continue
		}
		if ownedBy(m, key) {
			return m.ID, true
		}
	}
	return "", false
}

// Publish creates or edits the panel for key.
//   - remembered ID: edit it
//   - otherwise recover it from channel history and edit
//   - otherwise send a new message and remember it
func (p *Publisher) Publish(channelID, key string, emb *discordgo.MessageEmbed, comps []discordgo.MessageComponent) error {
	mu := p.lock(channelID, key)
	mu.Lock()
	defer mu.Unlock()
	return p.publishLocked(channelID, key, emb, comps, true)
}

func (p *Publisher) publishLocked(channelID, key string, emb *discordgo.MessageEmbed, comps []discordgo.MessageComponent, retry bool) error {
	if emb != nil && emb.Footer == nil {
		emb.Footer = &discordgo.MessageEmbedFooter{Text: FooterFor(key)}
	}
	id, ok := p.remembered(channelID, key)
	if !ok {
		if id, ok = p.find(channelID, key); ok {
			p.log.Debug("panel rehydrated", zap.String("key", key), zap.String("message", id))
			p.Remember(channelID, key, id)
		}
	}
	if ok {
		err := p.edit(channelID, id, emb, comps)
		var re *discordgo.RESTError
		if retry && errors.As(err, &re) && re.Message != nil && re.Message.Code == codeUnknownMessage {
			p.Forget(channelID, key)
			return p.publishLocked(channelID, key, emb, comps, false)
		}
		return err
	}
	msg, err := p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{emb},
		Components: comps,
	})
	if err != nil {
		return err
	}
	if msg != nil {
		p.log.Debug("panel created", zap.String("key", key), zap.String("message", msg.ID))
		p.Remember(channelID, key, msg.ID)
	}
	return nil
}

func (p *Publisher) edit(channelID, messageID string, emb *discordgo.MessageEmbed, comps []discordgo.MessageComponent) error {
	embeds := []*discordgo.MessageEmbed{emb}
	if comps == nil {
		comps = []discordgo.MessageComponent{}
	}
	_, err := p.api.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &embeds,
		Components: &comps,
	})
	return err
}

// Say posts a plain message.
func (p *Publisher) Say(channelID, content string) {
	if channelID == "" || content == "" {
		return
	}
	if _, err := p.api.ChannelMessageSend(channelID, content); err != nil {
		p.log.Warn("send failed", zap.String("channel", channelID), zap.Error(err))
	}
}

// SayWith posts a message with components.
func (p *Publisher) SayWith(channelID, content string, comps []discordgo.MessageComponent) {
	if channelID == "" {
		return
	}
	_, err := p.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content, Components: comps})
	if err != nil {
		p.log.Warn("send failed", zap.String("channel", channelID), zap.Error(err))
	}
}
