package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jersey/internal/catalog"
	"github.com/noah-isme/backend-jersey/internal/common"
	"github.com/noah-isme/backend-jersey/internal/events"
	"github.com/noah-isme/backend-jersey/internal/obs"
)

// ErrNotFound indicates the requested cart line could not be located.
var ErrNotFound = errors.New("cart item not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

const maxQty = 99

// Catalog resolves products referenced by cart lines.
type Catalog interface {
	Get(id int) (catalog.Product, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID string, payload any) (events.Event, error)
}

// Service encapsulates cart domain operations. Carts live in process memory
// for the running session and are written through to Store after every change.
// A cached cart is replaced when Store holds a newer copy, so replicas sharing
// one Store converge on the latest write.
type Service struct {
	Catalog        Catalog
	Store          Store
	Events         Emitter
	Logger         zerolog.Logger
	Validate       *validator.Validate
	Currency       string
	CurrencySymbol string
	Now            func() time.Time
	// IdleTTL drops cached carts untouched for this long. Zero keeps them.
	IdleTTL time.Duration

	once     sync.Once
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	cart     *Cart
	lastUsed time.Time
	evicted  bool
}

func (s *Service) init() {
	s.once.Do(func() {
		s.sessions = map[string]*session{}
		if s.Validate == nil {
			s.Validate = NewValidator()
		}
	})
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Catalog == nil {
		return errors.New("cart service not configured")
	}
	s.init()
	return nil
}

func parseCartID(cartID string) (string, error) {
	id, err := uuid.Parse(cartID)
	if err != nil {
		return "", common.BadRequest("invalid cart id", ErrInvalidInput)
	}
	return id.String(), nil
}

func (s *Service) emptyCart(key string) *Cart {
	return &Cart{ID: key, Lines: []Line{}, UpdatedAt: s.now()}
}

// acquire returns the locked session for a cart. A cart that is neither
// cached nor persisted is only cached when create is set; otherwise acquire
// returns nil and retains nothing.
func (s *Service) acquire(ctx context.Context, key string, create bool) (*session, error) {
	for {
		s.mu.Lock()
		sess := s.sessions[key]
		s.mu.Unlock()

		if sess == nil {
			c, found := s.load(ctx, key)
			if !found && !create {
				return nil, nil
			}
			s.mu.Lock()
			if existing := s.sessions[key]; existing != nil {
				sess = existing
			} else {
				sess = &session{cart: c}
				s.sessions[key] = sess
			}
			s.mu.Unlock()
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		now := s.now()
		if s.IdleTTL > 0 && !sess.lastUsed.IsZero() && now.Sub(sess.lastUsed) > s.IdleTTL {
			s.evictLocked(key, sess)
			sess.mu.Unlock()
			continue
		}
		if !sess.lastUsed.IsZero() {
			s.refreshLocked(ctx, sess)
		}
		sess.lastUsed = now
		return sess, nil
	}
}

// refreshLocked swaps in the persisted cart when another writer saved a
// newer one.
func (s *Service) refreshLocked(ctx context.Context, sess *session) {
	stored, found := s.load(ctx, sess.cart.ID)
	if found && stored.UpdatedAt.After(sess.cart.UpdatedAt) {
		sess.cart = stored
	}
}

// evictLocked drops sess from the cache. The caller holds sess.mu.
func (s *Service) evictLocked(key string, sess *session) {
	sess.evicted = true
	s.mu.Lock()
	if s.sessions[key] == sess {
		delete(s.sessions, key)
	}
	s.mu.Unlock()
}

// Sweep drops cached carts idle for longer than IdleTTL and returns how many
// were dropped. Persisted copies are untouched.
func (s *Service) Sweep() int {
	if s == nil || s.IdleTTL <= 0 {
		return 0
	}
	s.init()
	s.mu.Lock()
	candidates := make(map[string]*session, len(s.sessions))
	for key, sess := range s.sessions {
		candidates[key] = sess
	}
	s.mu.Unlock()

	now := s.now()
	dropped := 0
	for key, sess := range candidates {
		// a busy session is in use, not idle
		if !sess.mu.TryLock() {
			continue
		}
		if !sess.evicted && !sess.lastUsed.IsZero() && now.Sub(sess.lastUsed) > s.IdleTTL {
			s.evictLocked(key, sess)
			dropped++
		}
		sess.mu.Unlock()
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.Logger.Debug().Int("dropped", n).Msg("swept idle carts")
			}
		}
	}
}

// load reads a persisted cart. Any failure yields an empty cart and found
// reports false.
func (s *Service) load(ctx context.Context, key string) (*Cart, bool) {
	if s.Store == nil {
		return s.emptyCart(key), false
	}
	data, ok, err := s.Store.Load(ctx, key)
	if err != nil {
		obs.ObserveCartPersistFailure("load")
		s.Logger.Warn().Err(err).Str("cart_id", key).Msg("load cart failed, starting empty")
		return s.emptyCart(key), false
	}
	if !ok {
		return s.emptyCart(key), false
	}
	var stored Cart
	if err := json.Unmarshal(data, &stored); err != nil {
		obs.ObserveCartPersistFailure("decode")
		s.Logger.Warn().Err(err).Str("cart_id", key).Msg("stored cart is corrupt, starting empty")
		return s.emptyCart(key), false
	}
	stored.ID = key
	lines := make([]Line, 0, len(stored.Lines))
	for _, ln := range stored.Lines {
		if ln.Qty <= 0 || ln.ID == "" {
			continue
		}
		lines = append(lines, ln)
	}
	stored.Lines = lines
	return &stored, true
}

// persist writes the cart through to the store. Failures are logged and counted only.
func (s *Service) persist(ctx context.Context, c *Cart, op string) {
	if s.Store == nil {
		return
	}
	data, err := json.Marshal(c)
	if err == nil {
		err = s.Store.Save(ctx, c.ID, data)
	}
	if err != nil {
		obs.ObserveCartPersistFailure(op)
		s.Logger.Warn().Err(err).Str("cart_id", c.ID).Str("op", op).Msg("persist cart failed")
	}
}

// Create allocates a new empty cart.
func (s *Service) Create(ctx context.Context) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	c := &Cart{ID: uuid.NewString(), Lines: []Line{}, UpdatedAt: s.now()}
	sess := &session{cart: c, lastUsed: c.UpdatedAt}
	s.mu.Lock()
	s.sessions[c.ID] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.persist(ctx, c, "create")
	obs.ObserveCartMutation("create", "ok")
	return c.clone(), nil
}

// Get returns a snapshot of the cart. Unknown ids resolve to an empty cart
// that is not retained.
func (s *Service) Get(ctx context.Context, cartID string) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := parseCartID(cartID)
	if err != nil {
		return nil, err
	}
	sess, err := s.acquire(ctx, key, false)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return s.emptyCart(key), nil
	}
	defer sess.mu.Unlock()
	return sess.cart.clone(), nil
}

// AddItem validates the selection and adds it, merging with an identical line.
func (s *Service) AddItem(ctx context.Context, cartID string, in AddInput) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	in.normalize()
	if err := s.Validate.Struct(in); err != nil {
		obs.ObserveCartMutation("add", "invalid")
		return nil, invalidInput(err)
	}
	if _, err := s.Catalog.Get(in.ProductID); err != nil {
		obs.ObserveCartMutation("add", "invalid")
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &common.AppError{
				Code:       "INVALID_INPUT",
				Message:    "product does not exist",
				HTTPStatus: http.StatusUnprocessableEntity,
				Err:        errors.Join(ErrInvalidInput, err),
				Details:    map[string]string{"productId": "product does not exist"},
			}
		}
		return nil, fmt.Errorf("lookup product: %w", err)
	}

	key, err := parseCartID(cartID)
	if err != nil {
		return nil, err
	}
	sess, err := s.acquire(ctx, key, true)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	now := s.now()
	line := Line{
		ProductID:  in.ProductID,
		Qty:        in.Qty,
		Size:       in.Size,
		Version:    in.Version,
		CustomName: in.CustomName,
		Patch:      in.Patch,
	}
	if in.CustomNumber != nil {
		n := *in.CustomNumber
		line.CustomNumber = &n
	}
	c := sess.cart
	merged := false
	for i := range c.Lines {
		if c.Lines[i].sameSelection(line) {
			next := c.Lines[i].Qty + line.Qty
			if next > maxQty {
				obs.ObserveCartMutation("add", "invalid")
				return nil, &common.AppError{
					Code:       "INVALID_INPUT",
					Message:    "qty must be between 1 and 99",
					HTTPStatus: http.StatusUnprocessableEntity,
					Err:        ErrInvalidInput,
					Details:    map[string]string{"qty": "qty must be between 1 and 99"},
				}
			}
			c.Lines[i].Qty = next
			merged = true
			break
		}
	}
	if !merged {
		line.ID = uuid.NewString()
		line.AddedAt = now
		c.Lines = append(c.Lines, line)
	}
	c.UpdatedAt = now
	s.persist(ctx, c, "add")
	obs.ObserveCartMutation("add", "ok")
	return c.clone(), nil
}

// UpdateQty sets a line's quantity. Zero removes the line.
func (s *Service) UpdateQty(ctx context.Context, cartID, lineID string, qty int) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if qty < 0 || qty > maxQty {
		obs.ObserveCartMutation("update", "invalid")
		return nil, &common.AppError{
			Code:       "INVALID_INPUT",
			Message:    "qty must be between 0 and 99",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        ErrInvalidInput,
			Details:    map[string]string{"qty": "qty must be between 0 and 99"},
		}
	}
	key, err := parseCartID(cartID)
	if err != nil {
		return nil, err
	}
	sess, err := s.acquire(ctx, key, false)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		obs.ObserveCartMutation("update", "not_found")
		return nil, ErrNotFound
	}
	defer sess.mu.Unlock()

	c := sess.cart
	idx := c.indexOf(lineID)
	if idx < 0 {
		obs.ObserveCartMutation("update", "not_found")
		return nil, ErrNotFound
	}
	if qty == 0 {
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	} else {
		c.Lines[idx].Qty = qty
	}
	c.UpdatedAt = s.now()
	s.persist(ctx, c, "update")
	obs.ObserveCartMutation("update", "ok")
	return c.clone(), nil
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, lineID string) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := parseCartID(cartID)
	if err != nil {
		return nil, err
	}
	sess, err := s.acquire(ctx, key, false)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		obs.ObserveCartMutation("remove", "not_found")
		return nil, ErrNotFound
	}
	defer sess.mu.Unlock()

	c := sess.cart
	idx := c.indexOf(lineID)
	if idx < 0 {
		obs.ObserveCartMutation("remove", "not_found")
		return nil, ErrNotFound
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	c.UpdatedAt = s.now()
	s.persist(ctx, c, "remove")
	obs.ObserveCartMutation("remove", "ok")
	return c.clone(), nil
}

// Clear empties the cart and publishes cart.cleared with the given reason.
func (s *Service) Clear(ctx context.Context, cartID, reason string) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := parseCartID(cartID)
	if err != nil {
		return nil, err
	}
	sess, err := s.acquire(ctx, key, false)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		obs.ObserveCartMutation("clear", "ok")
		return s.emptyCart(key), nil
	}
	defer sess.mu.Unlock()

	s.clearLocked(ctx, sess.cart, reason)
	return sess.cart.clone(), nil
}

// Checkout prices the cart and hands the view to fn, then empties the cart
// with reason "checkout" once fn succeeds. The cart stays locked throughout,
// so a concurrent change lands either before the snapshot or after the clear.
// An error from fn leaves the cart untouched.
func (s *Service) Checkout(ctx context.Context, cartID string, fn func(context.Context, View) error) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	key, err := parseCartID(cartID)
	if err != nil {
		return View{}, err
	}
	sess, err := s.acquire(ctx, key, false)
	if err != nil {
		return View{}, err
	}
	if sess == nil {
		view := s.Resolve(s.emptyCart(key))
		return view, fn(ctx, view)
	}
	defer sess.mu.Unlock()

	view := s.Resolve(sess.cart.clone())
	if err := fn(ctx, view); err != nil {
		return view, err
	}
	s.clearLocked(ctx, sess.cart, "checkout")
	return view, nil
}

// clearLocked empties c and emits cart.cleared when lines were removed. The
// caller holds the session lock.
func (s *Service) clearLocked(ctx context.Context, c *Cart, reason string) {
	removed := c.TotalQty()
	c.Lines = []Line{}
	c.UpdatedAt = s.now()
	s.persist(ctx, c, "clear")
	obs.ObserveCartMutation("clear", "ok")

	if s.Events == nil || removed == 0 {
		return
	}
	if _, err := s.Events.Emit(ctx, events.TopicCartCleared, c.ID, map[string]any{
		"cartId":     c.ID,
		"reason":     reason,
		"removedQty": removed,
	}); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", c.ID).Msg("emit cart.cleared")
	}
}

func (c *Cart) indexOf(lineID string) int {
	for i, ln := range c.Lines {
		if ln.ID == lineID {
			return i
		}
	}
	return -1
}
