package manager

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetbite/galley/pkg/config"
	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/metrics"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// ErrInvalidCredentials is returned by Login for a bad username or
// password. The API maps it to 401 without detail.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Notifier is attached to each new shift's hub to mirror events into
// out-of-band notifications. Implemented by pkg/notify.
type Notifier interface {
	Watch(shiftID string, hub *events.Hub)
}

// Manager coordinates the shift lifecycle: check-in, pause, resume,
// config changes and checkout. It owns the wiring between the durable
// shift record, the event hub registry and the inventory snapshot.
type Manager struct {
	store    storage.Store
	registry *events.Registry
	tokens   *TokenManager
	cfg      *config.Config
	notifier Notifier
	logger   zerolog.Logger
}

// NewManager creates the shift manager.
func NewManager(store storage.Store, registry *events.Registry, cfg *config.Config) *Manager {
	return &Manager{
		store:    store,
		registry: registry,
		tokens:   NewTokenManager(),
		cfg:      cfg,
		logger:   log.WithComponent("manager"),
	}
}

// SetNotifier attaches the notification watcher applied to every hub
// created by CheckIn.
func (m *Manager) SetNotifier(n Notifier) { m.notifier = n }

// Tokens exposes the session token manager to the API layer.
func (m *Manager) Tokens() *TokenManager { return m.tokens }

// CheckIn opens a shift for a truck at a location. Any shift still
// open for the truck is closed first, so a truck has at most one open
// shift. The shift's inventory snapshot is seeded from the active menu
// and its event hub is created before the shift is announced.
func (m *Manager) CheckIn(truckID, locationID string, cfg types.ShiftConfig) (*types.Shift, error) {
	if _, err := m.store.GetTruck(truckID); err != nil {
		return nil, err
	}
	if _, err := m.store.GetLocation(locationID); err != nil {
		return nil, err
	}

	if prev, err := m.store.ActiveShiftForTruck(truckID); err == nil {
		m.logger.Warn().Str("shift_id", prev.ID).Str("truck_id", truckID).Msg("closing lingering shift on check-in")
		if err := m.Checkout(prev.ID); err != nil {
			return nil, fmt.Errorf("failed to close lingering shift %s: %w", prev.ID, err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	shift := &types.Shift{
		ID:          uuid.New().String(),
		TruckID:     truckID,
		LocationID:  locationID,
		Status:      types.ShiftActive,
		Config:      cfg,
		CheckedInAt: time.Now().UTC(),
	}
	if err := m.store.CreateShift(shift); err != nil {
		return nil, fmt.Errorf("failed to persist shift: %w", err)
	}

	if err := m.seedInventory(shift.ID); err != nil {
		return nil, fmt.Errorf("failed to seed inventory: %w", err)
	}

	hub := m.registry.Create(shift.ID)
	if m.notifier != nil {
		m.notifier.Watch(shift.ID, hub)
	}

	metrics.ShiftsActive.Inc()
	m.logger.Info().
		Str("shift_id", shift.ID).
		Str("truck_id", truckID).
		Str("location_id", locationID).
		Msg("shift checked in")
	return shift, nil
}

// seedInventory copies the active menu into the shift's inventory
// snapshot. Stock edits during the shift touch the snapshot only,
// never the catalog.
func (m *Manager) seedInventory(shiftID string) error {
	items, err := m.store.ListMenuItems()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, item := range items {
		if !item.Active {
			continue
		}
		var count *int
		if item.StockCount != nil {
			c := *item.StockCount
			count = &c
		}
		line := &types.InventoryLine{
			ShiftID:           shiftID,
			ItemID:            item.ID,
			Name:              item.Name,
			PriceCents:        item.PriceCents,
			Count:             count,
			SoldOut:           count != nil && *count == 0,
			LowStockThreshold: item.LowStockThreshold,
			UpdatedAt:         now,
		}
		if err := m.store.PutInventoryLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Pause marks the shift paused for customers. Kitchen work continues;
// the pause event tells ordering channels to stop submitting.
func (m *Manager) Pause(shiftID, reason string, resumeBy *time.Time) (*types.Shift, error) {
	shift, err := m.store.GetShift(shiftID)
	if err != nil {
		return nil, err
	}
	if !shift.Active() {
		return nil, fmt.Errorf("shift %s is closed: %w", shiftID, types.ErrShiftNotActive)
	}
	shift.Status = types.ShiftPaused
	shift.PauseReason = reason
	shift.ResumeBy = resumeBy
	if err := m.store.UpdateShift(shift); err != nil {
		return nil, fmt.Errorf("failed to persist shift: %w", err)
	}
	payload := map[string]any{"reason": reason}
	if resumeBy != nil {
		payload["resume_by"] = resumeBy.UTC().Format(time.RFC3339)
	}
	m.registry.Publish(shiftID, types.EventPause, payload)
	m.logger.Info().Str("shift_id", shiftID).Str("reason", reason).Msg("shift paused")
	return shift, nil
}

// Resume reopens a paused shift to customers.
func (m *Manager) Resume(shiftID string) (*types.Shift, error) {
	shift, err := m.store.GetShift(shiftID)
	if err != nil {
		return nil, err
	}
	if !shift.Active() {
		return nil, fmt.Errorf("shift %s is closed: %w", shiftID, types.ErrShiftNotActive)
	}
	shift.Status = types.ShiftActive
	shift.PauseReason = ""
	shift.ResumeBy = nil
	if err := m.store.UpdateShift(shift); err != nil {
		return nil, fmt.Errorf("failed to persist shift: %w", err)
	}
	m.registry.Publish(shiftID, types.EventResume, nil)
	m.logger.Info().Str("shift_id", shiftID).Msg("shift resumed")
	return shift, nil
}

// UpdateConfig replaces the shift's throttle configuration and
// announces the change.
func (m *Manager) UpdateConfig(shiftID string, cfg types.ShiftConfig) (*types.Shift, error) {
	if cfg.MaxInProgress < 0 {
		return nil, fmt.Errorf("max_in_progress must be >= 0")
	}
	shift, err := m.store.GetShift(shiftID)
	if err != nil {
		return nil, err
	}
	if !shift.Active() {
		return nil, fmt.Errorf("shift %s is closed: %w", shiftID, types.ErrShiftNotActive)
	}
	shift.Config = cfg
	if err := m.store.UpdateShift(shift); err != nil {
		return nil, fmt.Errorf("failed to persist shift: %w", err)
	}
	m.registry.Publish(shiftID, types.EventConfigUpdated, map[string]any{
		"max_in_progress": cfg.MaxInProgress,
		"slot_interval":   cfg.SlotInterval.String(),
	})
	m.logger.Info().Str("shift_id", shiftID).Int("max_in_progress", cfg.MaxInProgress).Msg("shift config updated")
	return shift, nil
}

// Checkout closes the shift. The shift record becomes read-only, the
// hub broadcasts shift_closed and is torn down, and the archiver picks
// the orders up after the grace period.
func (m *Manager) Checkout(shiftID string) error {
	shift, err := m.store.GetShift(shiftID)
	if err != nil {
		return err
	}
	if !shift.Active() {
		return fmt.Errorf("shift %s is closed: %w", shiftID, types.ErrShiftNotActive)
	}
	now := time.Now().UTC()
	shift.Status = types.ShiftClosed
	shift.CheckedOutAt = &now
	if err := m.store.UpdateShift(shift); err != nil {
		return fmt.Errorf("failed to persist shift: %w", err)
	}
	m.registry.Close(shiftID)
	metrics.ShiftsActive.Dec()
	m.logger.Info().Str("shift_id", shiftID).Msg("shift checked out")
	return nil
}

// Login authenticates a staff member and issues a session token.
func (m *Manager) Login(username, password string) (*types.Staff, *SessionToken, error) {
	staff, err := m.store.GetStaffByUsername(username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if subtle.ConstantTimeCompare([]byte(HashPassword(password)), []byte(staff.PasswordHash)) != 1 {
		return nil, nil, ErrInvalidCredentials
	}
	token, err := m.tokens.GenerateToken(staff.ID, string(staff.Role), m.cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info().Str("staff_id", staff.ID).Str("role", string(staff.Role)).Msg("staff logged in")
	return staff, token, nil
}

// HashPassword returns the hex sha256 digest stored for staff
// passwords.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
