package voice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"layeh.com/gopus"

	"vckeeper/internal/music/session"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

var (
	ErrAlreadyPaused = errors.New("voice: playback is already paused")
	ErrNotPaused     = errors.New("voice: playback is not paused")
)

// Factory builds players that decode a local file with ffmpeg and
// stream opus frames onto the connection. Implements
// session.PlayerFactory.
type Factory struct {
	log *zap.Logger
}

func NewFactory(log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{log: log}
}

func (f *Factory) NewPlayer(conn session.Connection, filePath string) (session.Player, error) {
	vconn, ok := conn.(*Conn)
	if !ok {
		return nil, fmt.Errorf("voice: unsupported connection type %T", conn)
	}

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("voice: opus encoder: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-i", filePath,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)
	stream, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("voice: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("voice: start ffmpeg: %w", err)
	}

	p := &Player{
		vc:      vconn.vc,
		cmd:     cmd,
		stream:  stream,
		encoder: encoder,
		stop:    make(chan struct{}),
		done:    make(chan error, 1),
		log:     f.log.With(zap.String("file", filePath)),
	}
	go p.run()
	return p, nil
}

// Player streams one decoded file over one voice connection. Done
// yields exactly one value when the stream ends.
type Player struct {
	vc      *discordgo.VoiceConnection
	cmd     *exec.Cmd
	stream  io.ReadCloser
	encoder *gopus.Encoder

	mu     sync.Mutex
	paused bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan error

	log *zap.Logger
}

func (p *Player) Done() <-chan error { return p.done }

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return ErrAlreadyPaused
	}
	p.paused = true
	return nil
}

func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return ErrNotPaused
	}
	p.paused = false
	return nil
}

// Stop forces the stream to end; Done then yields nil.
func (p *Player) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Player) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) run() {
	defer func() {
		p.stream.Close()
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
		p.vc.Speaking(false)
	}()

	if err := p.vc.Speaking(true); err != nil {
		p.done <- fmt.Errorf("voice: speaking: %w", err)
		return
	}

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-p.stop:
			p.done <- nil
			return
		default:
		}

		if p.isPaused() {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		_, err := io.ReadFull(p.stream, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			p.done <- nil
			return
		}
		if err != nil {
			p.done <- fmt.Errorf("voice: read pcm: %w", err)
			return
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := p.encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			p.done <- fmt.Errorf("voice: encode: %w", err)
			return
		}

		select {
		case p.vc.OpusSend <- opus:
		case <-p.stop:
			p.done <- nil
			return
		}
	}
}
