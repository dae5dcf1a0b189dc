// Package plex queries a Plex Media Server for active playback sessions.
package plex

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// MediaType classifies a playback session
type MediaType string

const (
	// MediaVideo is a movie or episode
	MediaVideo MediaType = "Video"
	// MediaTrack is a music track
	MediaTrack MediaType = "Track"
	// MediaPhoto is a photo or slideshow
	MediaPhoto MediaType = "Photo"
)

const (
	unknownUser   = "Unknown User"
	unknownPlayer = "Unknown Player"
)

// Session is one active playback reported by the server
type Session struct {
	User       string    `json:"user"`
	Title      string    `json:"title"`
	MediaType  MediaType `json:"media_type"`
	PlayerName string    `json:"player"`
	// Artist is set for tracks only
	Artist string `json:"artist,omitempty"`
}

type titled struct {
	Title string `xml:"title,attr"`
}

type sessionElement struct {
	Title            string  `xml:"title,attr"`
	GrandparentTitle string  `xml:"grandparentTitle,attr"`
	User             *titled `xml:"User"`
	Player           *titled `xml:"Player"`
}

// ParseSessions extracts Video, Track and Photo entries from a
// /status/sessions response body in document order.
func ParseSessions(r io.Reader) ([]Session, error) {
	dec := xml.NewDecoder(r)
	sessions := []Session{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return sessions, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse sessions: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		kind := MediaType(start.Name.Local)
		switch kind {
		case MediaVideo, MediaTrack, MediaPhoto:
		default:
			continue
		}

		var el sessionElement
		if err := dec.DecodeElement(&el, &start); err != nil {
			return nil, fmt.Errorf("parse %s element: %w", kind, err)
		}
		sessions = append(sessions, el.session(kind))
	}
}

func (el sessionElement) session(kind MediaType) Session {
	s := Session{
		User:       unknownUser,
		Title:      el.Title,
		MediaType:  kind,
		PlayerName: unknownPlayer,
	}
	if el.User != nil {
		s.User = el.User.Title
	}
	if el.Player != nil {
		s.PlayerName = el.Player.Title
	}
	if kind == MediaTrack {
		s.Artist = el.GrandparentTitle
	}
	return s
}
