package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/terraguess/api/internal/content"
	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/leaderboard"
	"github.com/terraguess/api/internal/store"
)

var (
	ErrSessionNotFound    = errors.New("game session not found")
	ErrSessionUnavailable = errors.New("game session is no longer available")
	ErrSessionFull        = errors.New("game session is full")
	ErrNotHost            = errors.New("only the host can perform this action")
	ErrNotPlaying         = errors.New("round is not accepting guesses")
	ErrAlreadyGuessed     = errors.New("player already guessed this round")
	ErrNotInSession       = errors.New("player is not in this session")
)

// disconnectBonus is credited to every remaining player when someone
// leaves mid-game.
const disconnectBonus = 500

const shareCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LocationSource supplies round targets.
type LocationSource interface {
	SelectAndConsume(ctx context.Context, userID string, gameType content.GameType) (content.Location, error)
}

// Config carries the timing knobs of the state machine. Round length
// is per difficulty and lives in ParamsFor.
type Config struct {
	TotalRounds     int
	PreviewDuration time.Duration
	RoundEndPause   time.Duration
	CleanupDelay    time.Duration
}

// Manager drives multiplayer sessions. The server is the host's
// authority: phase transitions run here, serialized per session, and
// all participants observe them through store subscriptions.
type Manager struct {
	store    *store.DocStore
	content  LocationSource
	presence *Tracker
	board    *leaderboard.Service
	log      *slog.Logger
	cfg      Config
	locks    *keyedMutex
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewManager(st *store.DocStore, src LocationSource, presence *Tracker, board *leaderboard.Service, cfg Config, log *slog.Logger) *Manager {
	return &Manager{
		store:    st,
		content:  src,
		presence: presence,
		board:    board,
		log:      log,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Get loads a session by id.
func (m *Manager) Get(ctx context.Context, sessionID string) (Session, error) {
	var s Session
	err := m.store.Get(ctx, Collection, sessionID, &s)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.ID = sessionID
	return s, nil
}

// Create starts a new session with the creator as host, or for quick
// play first tries to join an existing matching session. Returns the
// session id and the share code (empty for quick play).
func (m *Manager) Create(ctx context.Context, userID, username string, maxPlayers int, difficulty Difficulty, gameType content.GameType, quickPlay bool) (string, string, error) {
	if maxPlayers <= 0 {
		maxPlayers = 2
	}

	if quickPlay {
		id, err := m.FindAvailable(ctx, difficulty, gameType)
		if err != nil {
			m.log.Warn("matchmaking query failed", slog.String("error", err.Error()))
		} else if id != "" {
			if err := m.Join(ctx, id, userID, username); err == nil {
				return id, "", nil
			}
			// Lost the race for that session; fall through and host
			// a fresh one.
		}
	}

	shareCode := ""
	if !quickPlay {
		shareCode = m.newShareCode()
	}

	now := store.FormatTime(m.now())
	sess := Session{
		Status:    StatusWaiting,
		GameState: StateWaiting,
		Players: map[string]*Player{
			userID: {
				ID:         userID,
				Username:   username,
				Ready:      false,
				Score:      0,
				LastActive: now,
				JoinedAt:   now,
			},
		},
		PlayerCount: 1,
		MaxPlayers:  maxPlayers,
		TotalRounds: m.cfg.TotalRounds,
		ShareCode:   shareCode,
		Difficulty:  difficulty,
		GameType:    gameType,
		IsQuickPlay: quickPlay,
		Host:        userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := m.store.Add(ctx, Collection, sess)
	if err != nil {
		return "", "", err
	}
	m.log.Info("session created",
		slog.String("session", id),
		slog.String("host", userID),
		slog.Bool("quickPlay", quickPlay))

	time.AfterFunc(m.cfg.CleanupDelay, func() { m.cleanup(id) })
	return id, shareCode, nil
}

// cleanup deletes a session that never got going: nobody active
// anymore, or still waiting past the cleanup delay.
func (m *Manager) cleanup(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var s Session
	if err := m.store.Get(ctx, Collection, sessionID, &s); err != nil {
		return
	}
	created, err := store.ParseTime(s.CreatedAt)
	if err != nil {
		return
	}

	stale := s.Status == StatusWaiting && m.now().Sub(created) >= m.cfg.CleanupDelay
	if len(s.ActivePlayers(m.now(), LivenessWindow)) == 0 || stale {
		if err := m.store.Delete(ctx, Collection, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			m.log.Warn("session cleanup failed",
				slog.String("session", sessionID),
				slog.String("error", err.Error()))
			return
		}
		m.log.Info("cleaned up inactive session", slog.String("session", sessionID))
	}
}

// FindAvailable returns a joinable quick-play session matching the
// criteria, preferring fuller then older sessions. A session qualifies
// only with exactly one active player, so nobody joins a lobby whose
// lone occupant already vanished.
func (m *Manager) FindAvailable(ctx context.Context, difficulty Difficulty, gameType content.GameType) (string, error) {
	docs, err := m.store.Query(ctx, Collection, store.Query{
		Filters: []store.Filter{
			{Path: "status", Op: "==", Value: string(StatusWaiting)},
			{Path: "difficulty", Op: "==", Value: string(difficulty)},
			{Path: "gameType", Op: "==", Value: string(gameType)},
			{Path: "isQuickPlay", Op: "==", Value: true},
			{Path: "playerCount", Op: "<", Value: 2},
		},
		OrderBy: []store.Order{
			{Path: "playerCount", Desc: true},
			{Path: "createdAt"},
		},
		Limit: 5,
	})
	if err != nil {
		return "", err
	}

	for _, d := range docs {
		var s Session
		if err := json.Unmarshal(d.Data, &s); err != nil {
			continue
		}
		if len(s.ActivePlayers(m.now(), LivenessWindow)) == 1 {
			return d.ID, nil
		}
	}
	return "", nil
}

// FindByShareCode resolves a share code to a waiting session id, or ""
// when no open session carries it.
func (m *Manager) FindByShareCode(ctx context.Context, code string) (string, error) {
	docs, err := m.store.Query(ctx, Collection, store.Query{
		Filters: []store.Filter{
			{Path: "shareCode", Op: "==", Value: strings.ToUpper(code)},
			{Path: "status", Op: "==", Value: string(StatusWaiting)},
		},
		Limit: 1,
	})
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].ID, nil
}

// Join adds a player to a waiting session. Capacity is checked against
// active players inside a transaction, so two racers for the last slot
// resolve to exactly one winner.
func (m *Manager) Join(ctx context.Context, sessionID, userID, username string) error {
	return m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.Status != StatusWaiting {
			return nil, ErrSessionUnavailable
		}

		active := s.ActivePlayers(m.now(), LivenessWindow)
		if _, in := s.Players[userID]; !in && len(active) >= s.MaxPlayers {
			return nil, ErrSessionFull
		}

		now := store.FormatTime(m.now())
		if s.Players == nil {
			s.Players = map[string]*Player{}
		}
		s.Players[userID] = &Player{
			ID:         userID,
			Username:   username,
			Ready:      true,
			Score:      0,
			LastActive: now,
			JoinedAt:   now,
		}
		s.PlayerCount = len(active) + 1
		s.UpdatedAt = now
		return &s, nil
	})
}

// SetReady toggles the player's ready flag.
func (m *Manager) SetReady(ctx context.Context, sessionID, userID string, ready bool) error {
	return m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		p := s.Players[userID]
		if p == nil {
			return nil, ErrNotInSession
		}
		p.Ready = ready
		s.UpdatedAt = store.FormatTime(m.now())
		return &s, nil
	})
}

// SetDifficulty lets the host change difficulty while the session is
// still waiting.
func (m *Manager) SetDifficulty(ctx context.Context, sessionID, userID string, difficulty Difficulty) error {
	return m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.Host != userID {
			return nil, ErrNotHost
		}
		if s.Status != StatusWaiting {
			return nil, ErrSessionUnavailable
		}
		s.Difficulty = difficulty
		s.UpdatedAt = store.FormatTime(m.now())
		return &s, nil
	})
}

// StartRound begins the next round: the host picks a fresh target,
// the session enters preview, and after the preview duration gameplay
// opens with a computed start position.
func (m *Manager) StartRound(ctx context.Context, sessionID, userID string) error {
	var host string
	{
		s, err := m.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Host != userID {
			return ErrNotHost
		}
		host = s.Host
	}
	return m.startRound(ctx, sessionID, host)
}

func (m *Manager) startRound(ctx context.Context, sessionID, hostID string) error {
	unlock := m.locks.lock(sessionID)
	defer unlock()

	current, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if current.Status == StatusCompleted {
		return ErrSessionUnavailable
	}

	loc, err := m.content.SelectAndConsume(ctx, hostID, current.GameType)
	if err != nil {
		return err
	}

	roundStart := m.now().UnixMilli()
	err = m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.Status == StatusCompleted {
			return nil, ErrSessionUnavailable
		}

		s.Status = StatusInProgress
		s.GameState = StatePreview
		s.CurrentRound++
		s.TargetLocation = &loc.TargetLocation
		s.Country = loc.Country
		s.CountryBounds = &loc.CountryBounds
		s.StartPosition = nil
		s.RoundStartTime = roundStart
		s.UpdatedAt = store.FormatTime(m.now())
		return &s, nil
	})
	if err != nil {
		return err
	}
	m.log.Info("round started",
		slog.String("session", sessionID),
		slog.String("location", loc.TargetLocation.Name))

	time.AfterFunc(m.cfg.PreviewDuration, func() { m.beginPlaying(sessionID, roundStart) })
	return nil
}

// beginPlaying moves a session from preview to playing. The preview's
// roundStartTime doubles as a staleness token: if another round started
// meanwhile, this transition is skipped.
func (m *Manager) beginPlaying(sessionID string, previewStart int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	unlock := m.locks.lock(sessionID)
	defer unlock()

	playStart := m.now().UnixMilli()
	var roundSeconds int
	err := m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, errNoChange
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.GameState != StatePreview || s.RoundStartTime != previewStart || s.TargetLocation == nil {
			return nil, errNoChange
		}

		target := geo.LatLng{Lat: s.TargetLocation.Lat, Lng: s.TargetLocation.Lng}
		bounds := geo.Bounds{}
		if s.CountryBounds != nil {
			bounds = *s.CountryBounds
		}
		start := m.startPosition(target, bounds)
		s.StartPosition = &start
		s.GameState = StatePlaying
		s.RoundStartTime = playStart
		s.UpdatedAt = store.FormatTime(m.now())
		roundSeconds = ParamsFor(s.Difficulty).Time
		return &s, nil
	})
	if errors.Is(err, errNoChange) {
		return
	}
	if err != nil {
		m.log.Error("transition to playing failed",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
		return
	}

	// End the round when the clock runs out, unless everyone guessed
	// first and the round already ended.
	time.AfterFunc(time.Duration(roundSeconds)*time.Second, func() {
		m.endRoundIfCurrent(sessionID, playStart)
	})
}

func (m *Manager) endRoundIfCurrent(sessionID string, roundStart int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return
	}
	if s.GameState != StatePlaying || s.RoundStartTime != roundStart {
		return
	}
	if err := m.endRound(ctx, sessionID); err != nil && !errors.Is(err, errNoChange) {
		m.log.Error("round timeout handling failed",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
	}
}

// EndRound lets the host close the current round early.
func (m *Manager) EndRound(ctx context.Context, sessionID, userID string) error {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Host != userID {
		return ErrNotHost
	}
	err = m.endRound(ctx, sessionID)
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// endRound writes round_end and schedules the advance to either the
// next round or the game end after the fixed pause.
func (m *Manager) endRound(ctx context.Context, sessionID string) error {
	unlock := m.locks.lock(sessionID)
	defer unlock()

	err := m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.GameState != StatePlaying && s.GameState != StatePreview {
			return nil, errNoChange
		}
		s.GameState = StateRoundEnd
		s.UpdatedAt = store.FormatTime(m.now())
		return &s, nil
	})
	if err != nil {
		return err
	}

	time.AfterFunc(m.cfg.RoundEndPause, func() { m.advance(sessionID) })
	return nil
}

// advance runs after the round-end pause: either the game is over, or
// guesses are cleared and the next round starts.
func (m *Manager) advance(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	unlock := m.locks.lock(sessionID)

	s, err := m.Get(ctx, sessionID)
	if err != nil {
		unlock()
		return
	}
	if s.GameState != StateRoundEnd {
		unlock()
		return
	}

	if s.CurrentRound >= s.TotalRounds {
		m.finishGame(ctx, sessionID)
		unlock()
		return
	}

	err = m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		for _, p := range s.Players {
			if p == nil {
				continue
			}
			p.LastGuess = nil
			p.Ready = true
		}
		s.UpdatedAt = store.FormatTime(m.now())
		return &s, nil
	})
	unlock()
	if err != nil {
		m.log.Error("preparing next round failed",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
		return
	}

	if err := m.startRound(ctx, sessionID, s.Host); err != nil {
		m.log.Error("starting next round failed",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
	}
}

// finishGame completes the session and folds every player's result
// into the leaderboard, stats and achievements. Caller holds the
// session lock.
func (m *Manager) finishGame(ctx context.Context, sessionID string) {
	var final Session
	err := m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s.Status = StatusCompleted
		s.GameState = StateGameEnd
		s.UpdatedAt = store.FormatTime(m.now())
		final = s
		return &s, nil
	})
	if err != nil {
		m.log.Error("completing game failed",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
		return
	}

	created, _ := store.ParseTime(final.CreatedAt)
	elapsed := m.now().Sub(created).Seconds()

	for _, p := range final.Players {
		if p == nil {
			continue
		}
		accuracy := 0.0
		if final.TotalRounds > 0 {
			accuracy = float64(p.GuessCount) / float64(final.TotalRounds) * 100
		}
		hiddenGems := 0
		if final.GameType == content.GameTypeHiddenGems {
			hiddenGems = p.GuessCount
		}
		newly, err := m.board.RecordResult(ctx, leaderboard.GameResult{
			UserID:          p.ID,
			Username:        p.Username,
			GameType:        string(final.GameType),
			Difficulty:      string(final.Difficulty),
			Score:           p.Score,
			TimeTaken:       elapsed,
			Accuracy:        accuracy,
			FastestGuess:    p.FastestGuess,
			HiddenGemsFound: hiddenGems,
		})
		if err != nil {
			m.log.Error("recording game result failed",
				slog.String("session", sessionID),
				slog.String("user", p.ID),
				slog.String("error", err.Error()))
			continue
		}
		if len(newly) > 0 {
			m.log.Info("achievements earned",
				slog.String("user", p.ID),
				slog.Any("achievements", newly))
		}
	}
	m.log.Info("game completed", slog.String("session", sessionID))
}

// GuessResult reports the outcome of a guess attempt. A miss leaves
// the session untouched so the player can keep trying.
type GuessResult struct {
	Hit      bool    `json:"hit"`
	Score    int     `json:"score,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	TimeLeft float64 `json:"timeLeft,omitempty"`
}

// Guess handles a player's click during play. A hit inside the win
// polygon scores by distance and remaining time; once every active
// player has guessed, the round ends early.
func (m *Manager) Guess(ctx context.Context, sessionID, userID string, pos geo.LatLng) (GuessResult, error) {
	unlock := m.locks.lock(sessionID)

	var res GuessResult
	var allGuessed bool
	err := m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		allGuessed = false
		if raw == nil {
			return nil, ErrSessionNotFound
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s.GameState != StatePlaying || s.TargetLocation == nil {
			return nil, ErrNotPlaying
		}
		p := s.Players[userID]
		if p == nil {
			return nil, ErrNotInSession
		}
		if p.LastGuess != nil {
			return nil, ErrAlreadyGuessed
		}

		target := geo.LatLng{Lat: s.TargetLocation.Lat, Lng: s.TargetLocation.Lng}
		if !geo.PointInPolygon(pos, geo.WinPolygon(target)) {
			res = GuessResult{Hit: false}
			return nil, errNoChange
		}

		params := ParamsFor(s.Difficulty)
		elapsed := float64(m.now().UnixMilli()-s.RoundStartTime) / 1000
		timeLeft := float64(params.Time) - elapsed
		if timeLeft < 0 {
			timeLeft = 0
		}

		distance := geo.DistanceMeters(pos, target)
		score := geo.Score(distance, timeLeft)

		guessPos := pos
		p.Position = &guessPos
		p.Score += score
		p.GuessCount++
		if p.FastestGuess == 0 || elapsed < p.FastestGuess {
			p.FastestGuess = elapsed
		}
		p.LastGuess = &Guess{Position: guessPos, Score: score, Distance: distance}
		s.UpdatedAt = store.FormatTime(m.now())

		allGuessed = true
		for _, ap := range s.ActivePlayers(m.now(), LivenessWindow) {
			if ap.LastGuess == nil {
				allGuessed = false
				break
			}
		}

		res = GuessResult{Hit: true, Score: score, Distance: distance, TimeLeft: timeLeft}
		return &s, nil
	})
	unlock()

	if errors.Is(err, errNoChange) {
		return res, nil
	}
	if err != nil {
		return GuessResult{}, err
	}

	if allGuessed {
		if err := m.endRound(ctx, sessionID); err != nil && !errors.Is(err, errNoChange) {
			m.log.Error("ending round after final guess failed",
				slog.String("session", sessionID),
				slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// Heartbeat refreshes the player's liveness stamp.
func (m *Manager) Heartbeat(ctx context.Context, sessionID, userID string) error {
	err := m.presence.Heartbeat(ctx, sessionID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// UpdatePosition stores the player's current map position for
// spectators.
func (m *Manager) UpdatePosition(ctx context.Context, sessionID, userID string, pos geo.LatLng) error {
	now := store.FormatTime(m.now())
	err := m.store.Update(ctx, Collection, sessionID, map[string]any{
		"players." + userID + ".position": pos,
		"updatedAt":                       now,
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// Disconnect removes a player. Remaining players are compensated with
// a score bonus; dropping below two players completes the game, and an
// emptied session is deleted outright.
func (m *Manager) Disconnect(ctx context.Context, sessionID, userID string) error {
	unlock := m.locks.lock(sessionID)
	defer unlock()

	err := m.store.Transaction(ctx, Collection, sessionID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, errNoChange
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if _, in := s.Players[userID]; !in {
			return nil, errNoChange
		}
		delete(s.Players, userID)

		if len(s.Players) == 0 {
			return nil, nil
		}

		for _, p := range s.Players {
			if p != nil {
				p.Score += disconnectBonus
			}
		}
		s.PlayerCount = len(s.Players)
		s.PlayerLeft = userID
		if len(s.Players) < 2 {
			s.Status = StatusCompleted
		}
		s.UpdatedAt = store.FormatTime(m.now())
		return &s, nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

func (m *Manager) startPosition(target geo.LatLng, bounds geo.Bounds) geo.LatLng {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return geo.StartPosition(m.rng, target, bounds)
}

func (m *Manager) newShareCode() string {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	code := make([]byte, 6)
	for i := range code {
		code[i] = shareCodeChars[m.rng.Intn(len(shareCodeChars))]
	}
	return string(code)
}
