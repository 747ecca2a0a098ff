package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

// deezerTrack is one entry of the search response.
type deezerTrack struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Preview string `json:"preview"`
}

// deezerError is returned with status 200 for quota and parameter errors.
type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type searchResponse struct {
	Data  []deezerTrack `json:"data"`
	Total int           `json:"total"`
	Error *deezerError  `json:"error,omitempty"`
}

func (dt deezerTrack) toDomain() domain.Track {
	return domain.Track{
		ID:       strconv.FormatInt(dt.ID, 10),
		Title:    dt.Title,
		Artist:   dt.Artist.Name,
		URL:      dt.Preview,
		Keywords: []string{},
	}
}

// FindSoundtrack searches the catalog for the symphony's primary mood
// keyword and returns the first result.
func (c *Client) FindSoundtrack(ctx context.Context, s domain.Symphony) (domain.Track, error) {
	keyword := s.PrimaryMoodKeyword
	logger := zerolog.Ctx(ctx)

	searchURL := c.searchURL(keyword)
	logger.Debug().Str("url", searchURL).Msg("deezer adapter: search request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return domain.Track{}, &domain.TrackSearchError{Kind: domain.KindTransport, Keyword: keyword, Message: "failed to create search request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Track{}, &domain.TrackSearchError{Kind: domain.KindTransport, Keyword: keyword, Message: "could not connect to the music service", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Track{}, &domain.TrackSearchError{
			Kind:    domain.KindTransport,
			Keyword: keyword,
			Message: fmt.Sprintf("music service responded with status %d", resp.StatusCode),
		}
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Track{}, &domain.TrackSearchError{Kind: domain.KindMalformedResponse, Keyword: keyword, Message: "could not read the music service response", Err: err}
	}
	if body.Error != nil {
		return domain.Track{}, &domain.TrackSearchError{
			Kind:    domain.KindTransport,
			Keyword: keyword,
			Message: fmt.Sprintf("music service error %d: %s", body.Error.Code, body.Error.Message),
		}
	}

	if len(body.Data) == 0 {
		return domain.Track{}, &domain.TrackSearchError{
			Kind:    domain.KindEmptyResult,
			Keyword: keyword,
			Message: fmt.Sprintf("no suitable tracks were found for %q", keyword),
		}
	}

	track := body.Data[0].toDomain()
	logger.Debug().Str("track_id", track.ID).Str("artist", track.Artist).Str("title", track.Title).Msg("deezer adapter: first result")
	return track, nil
}
