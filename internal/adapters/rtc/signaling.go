package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pion/webrtc/v4"
)

// OfferRequest is the body of POST /offer.
type OfferRequest struct {
	SDP       string `json:"sdp"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// AnswerResponse is the reply to POST /offer.
type AnswerResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

func (r AnswerResponse) Description() (webrtc.SessionDescription, error) {
	t := webrtc.NewSDPType(r.Type)
	if t != webrtc.SDPTypeAnswer {
		return webrtc.SessionDescription{}, fmt.Errorf("expected answer, got %q", r.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: r.SDP}, nil
}

func exchangeOffer(ctx context.Context, client *http.Client, url string, req OfferRequest) (webrtc.SessionDescription, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return webrtc.SessionDescription{}, fmt.Errorf("post offer: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var ans AnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("decode answer: %w", err)
	}
	return ans.Description()
}
