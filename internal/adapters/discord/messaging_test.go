package discord

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTrip func(*http.Request) (*http.Response, error)

func (f roundTrip) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestSendEphemeralReturnsResponseError(t *testing.T) {
	s, err := discordgo.New("Bot token")
	require.NoError(t, err)
	s.Client = &http.Client{Transport: roundTrip(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadRequest,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{"message":"Unknown interaction","code":10062}`)),
			Request:    r,
		}, nil
	})}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{ID: "1", Token: "t"}}

	for name, send := range map[string]func() error{
		"send ephemeral":       func() error { return SendEphemeral(s, i, "hi") },
		"send ephemeral embed": func() error { return SendEphemeralEmbed(s, i, &discordgo.MessageEmbed{Title: "x"}) },
	} {
		err := send()
		var rest *discordgo.RESTError
		require.ErrorAs(t, err, &rest, name)
		assert.Equal(t, http.StatusBadRequest, rest.Response.StatusCode)
		assert.True(t, strings.HasPrefix(err.Error(), name+": "), err.Error())
	}
}
