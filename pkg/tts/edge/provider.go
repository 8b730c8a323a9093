// Package edge implements speech synthesis over the Edge TTS websocket
// protocol.
package edge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"aetherfm/pkg/tts"
)

// Provider implements tts.Synthesizer over the Edge TTS websocket endpoint.
type Provider struct {
	endpoint string
	timeout  time.Duration
}

// NewProvider creates an edge provider talking to the given websocket
// endpoint. timeout bounds a full synthesis exchange.
func NewProvider(endpoint string, timeout time.Duration) (*Provider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("edge: endpoint is required")
	}
	return &Provider{endpoint: endpoint, timeout: timeout}, nil
}

// Synthesize generates an .mp3 file for the text.
func (p *Provider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if voice == "" {
		return "", &tts.SynthesisError{Fatal: true, Err: fmt.Errorf("voice is required")}
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return "", &tts.SynthesisError{Err: fmt.Errorf("create output file: %w", err)}
	}
	defer file.Close()

	conn, err := p.dial(ctx)
	if err != nil {
		return "", &tts.SynthesisError{Err: err}
	}
	defer conn.Close()

	if err := p.sendConfig(conn); err != nil {
		return "", &tts.SynthesisError{Err: err}
	}

	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := p.sendSSML(conn, voice, text, requestID); err != nil {
		return "", &tts.SynthesisError{Err: err}
	}

	if err := p.consumeResponses(ctx, conn, file); err != nil {
		return "", &tts.SynthesisError{Err: err}
	}

	if err := tts.ValidateOutput(outputPath); err != nil {
		return "", err
	}
	return "mp3", nil
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	header.Set("Accept-Language", "en-US,en;q=0.9")
	if origin := os.Getenv("EDGE_TTS_ORIGIN"); origin != "" {
		header.Set("Origin", origin)
	}
	if ua := os.Getenv("EDGE_TTS_USER_AGENT"); ua != "" {
		header.Set("User-Agent", ua)
	}
	muid := strings.ReplaceAll(uuid.New().String(), "-", "")
	header.Set("Cookie", fmt.Sprintf("muid=%s", muid))

	url := p.endpoint
	if token := os.Getenv("EDGE_TTS_TRUSTED_CLIENT_TOKEN"); token != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = fmt.Sprintf("%s%sTrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
			url, sep, token, generateSecMSGec(token), os.Getenv("EDGE_TTS_SEC_MS_GEC_VERSION"))
	}

	var conn *websocket.Conn
	var dialErr error
	for i := 0; i < 3; i++ {
		var resp *http.Response
		conn, resp, dialErr = websocket.DefaultDialer.DialContext(ctx, url, header)
		if dialErr == nil {
			return conn, nil
		}
		if resp != nil {
			slog.Warn("edge: handshake failure", "status", resp.Status)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("websocket dial failed after retries: %w", dialErr)
}

// generateSecMSGec derives the Sec-MS-GEC token from the trusted client
// token: windows ticks floored to 5 minutes, concatenated and hashed.
func generateSecMSGec(trustedClientToken string) string {
	nowSec := float64(time.Now().Unix())
	ticks := nowSec + 11644473600
	ticks -= float64(int64(ticks) % 300)
	ticks *= 1e7

	strToHash := fmt.Sprintf("%.0f%s", ticks, trustedClientToken)
	hash := sha256.Sum256([]byte(strToHash))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func (p *Provider) sendConfig(conn *websocket.Conn) error {
	configMsg := "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n{\"context\":{\"synthesis\":{\"audio\":{\"metadataoptions\":{\"sentenceBoundaryEnabled\":\"false\",\"wordBoundaryEnabled\":\"false\"},\"outputFormat\":\"audio-24khz-48kbitrate-mono-mp3\"}}}}"
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		return fmt.Errorf("failed to send speech.config: %w", err)
	}
	return nil
}

func (p *Provider) sendSSML(conn *websocket.Conn, voice, text, requestID string) error {
	ssml := buildSSML(voice, text)
	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		return fmt.Errorf("failed to send ssml: %w", err)
	}
	return nil
}

func buildSSML(voice, text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	escapedText := replacer.Replace(text)
	return fmt.Sprintf("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'><voice name='%s'>%s</voice></speak>", voice, escapedText)
}

func (p *Provider) consumeResponses(ctx context.Context, conn *websocket.Conn, file *os.File) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message failed: %w", err)
		}

		if msgType == websocket.TextMessage {
			if strings.Contains(string(data), "Path:turn.end") {
				return nil
			}
		} else if msgType == websocket.BinaryMessage {
			if err := p.handleBinaryMessage(data, file); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// handleBinaryMessage strips the length-prefixed header and appends the audio
// payload to the output file.
func (p *Provider) handleBinaryMessage(data []byte, file *os.File) error {
	if len(data) < 2 {
		return nil
	}
	headerLength := int(uint16(data[0])<<8 | uint16(data[1]))
	if len(data) < 2+headerLength {
		return nil
	}
	audioData := data[2+headerLength:]
	if len(audioData) > 0 {
		if _, err := file.Write(audioData); err != nil {
			return fmt.Errorf("write audio data failed: %w", err)
		}
	}
	return nil
}
