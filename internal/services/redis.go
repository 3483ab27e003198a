package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront-backend/internal/config"
	"storefront-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisService struct {
	client *redis.Client
	logger *slog.Logger

	diagnosticsLimit int64
}

var _ Store = (*RedisService)(nil)

func NewRedisService(cfg *config.Config, logger *slog.Logger) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	limit := cfg.DiagnosticsLimit
	if limit <= 0 {
		limit = 500
	}

	return &RedisService{
		client:           client,
		logger:           logger,
		diagnosticsLimit: limit,
	}, nil
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) getDocument(ctx context.Context, key string, doc any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	return models.DecodeDocument(data, doc)
}

func (s *RedisService) setDocument(ctx context.Context, key string, doc any, expiry time.Duration) error {
	if err := models.Validate(doc); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, expiry).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *RedisService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.getDocument(ctx, fmt.Sprintf(KeyUser, userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *RedisService) SaveUser(ctx context.Context, user *models.User) error {
	return s.setDocument(ctx, fmt.Sprintf(KeyUser, user.ID), user, 0)
}

func (s *RedisService) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	var game models.Game
	if err := s.getDocument(ctx, fmt.Sprintf(KeyGame, gameID), &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *RedisService) SaveGame(ctx context.Context, game *models.Game) error {
	if err := s.setDocument(ctx, fmt.Sprintf(KeyGame, game.ID), game, 0); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, KeyGamesIndex, game.ID).Err(); err != nil {
		return fmt.Errorf("failed to index game: %w", err)
	}
	return nil
}

func (s *RedisService) ListGames(ctx context.Context) ([]*models.Game, error) {
	ids, err := s.client.SMembers(ctx, KeyGamesIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Game{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyGame, id))
	}

	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	games := make([]*models.Game, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}

		var game models.Game
		if err := models.DecodeDocument(data, &game); err != nil {
			s.logger.WarnContext(ctx, "skipping invalid game document",
				slog.String("game_id", ids[i]), slog.Any("error", err))
			continue
		}
		games = append(games, &game)
	}

	return games, nil
}

func (s *RedisService) HasEntitlement(ctx context.Context, userID, gameID string) (bool, error) {
	ok, err := s.client.HExists(ctx, fmt.Sprintf(KeyUserLibrary, userID), gameID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check entitlement: %w", err)
	}
	return ok, nil
}

func (s *RedisService) GrantEntitlement(ctx context.Context, entry *models.LibraryEntry) (bool, error) {
	if err := models.Validate(entry); err != nil {
		return false, err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to marshal entitlement: %w", err)
	}

	created, err := s.client.HSetNX(ctx, fmt.Sprintf(KeyUserLibrary, entry.UserID), entry.GameID, data).Result()
	if err != nil {
		return false, fmt.Errorf("failed to grant entitlement: %w", err)
	}
	return created, nil
}

func (s *RedisService) ListEntitlements(ctx context.Context, userID string) ([]*models.LibraryEntry, error) {
	values, err := s.client.HVals(ctx, fmt.Sprintf(KeyUserLibrary, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}

	entries := make([]*models.LibraryEntry, 0, len(values))
	for _, v := range values {
		var entry models.LibraryEntry
		if err := models.DecodeDocument([]byte(v), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (s *RedisService) AddToWishlist(ctx context.Context, entry *models.WishlistEntry) error {
	if err := models.Validate(entry); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal wishlist entry: %w", err)
	}
	if err := s.client.HSet(ctx, fmt.Sprintf(KeyUserWishlist, entry.UserID), entry.GameID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return nil
}

func (s *RedisService) RemoveFromWishlist(ctx context.Context, userID, gameID string) error {
	if err := s.client.HDel(ctx, fmt.Sprintf(KeyUserWishlist, userID), gameID).Err(); err != nil {
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return nil
}

func (s *RedisService) ListWishlist(ctx context.Context, userID string) ([]*models.WishlistEntry, error) {
	values, err := s.client.HVals(ctx, fmt.Sprintf(KeyUserWishlist, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}

	entries := make([]*models.WishlistEntry, 0, len(values))
	for _, v := range values {
		var entry models.WishlistEntry
		if err := models.DecodeDocument([]byte(v), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// commitPurchaseScript applies a whole checkout in one step. KEYS are the
// user's library hash, the sales hash and the sales time index. ARGV[1] is the
// commit timestamp, followed by one (gameId, entitlement, saleId, sale) group
// per line item. It returns a flat list of (entitlementCreated, saleCreated)
// flags in item order.
var commitPurchaseScript = redis.NewScript(`
	local library = KEYS[1]
	local sales = KEYS[2]
	local index = KEYS[3]
	local ts = tonumber(ARGV[1])

	local result = {}
	local n = (#ARGV - 1) / 4
	for i = 0, n - 1 do
		local base = 2 + i * 4
		local gameId = ARGV[base]
		local entitlement = ARGV[base + 1]
		local saleId = ARGV[base + 2]
		local sale = ARGV[base + 3]

		result[#result + 1] = redis.call("HSETNX", library, gameId, entitlement)

		local created = redis.call("HSETNX", sales, saleId, sale)
		if created == 1 then
			redis.call("ZADD", index, ts, saleId)
		end
		result[#result + 1] = created
	end

	return result
`)

func (s *RedisService) CommitPurchase(ctx context.Context, batch *models.PurchaseBatch) (*models.PurchaseCommit, error) {
	entries := batch.LibraryEntries()
	sales := batch.SaleRecords()

	args := make([]interface{}, 0, 1+4*len(entries))
	args = append(args, batch.At.Unix())

	for i := range entries {
		if err := models.Validate(entries[i]); err != nil {
			return nil, err
		}
		if err := models.Validate(sales[i]); err != nil {
			return nil, err
		}

		entryData, err := json.Marshal(entries[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entitlement: %w", err)
		}
		saleData, err := json.Marshal(sales[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sale: %w", err)
		}

		args = append(args, entries[i].GameID, entryData, sales[i].ID, saleData)
	}

	keys := []string{fmt.Sprintf(KeyUserLibrary, batch.UserID), KeySales, KeySalesIndex}

	flags, err := commitPurchaseScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}
	if len(flags) != 2*len(entries) {
		return nil, fmt.Errorf("unexpected commit result length %d for %d items", len(flags), len(entries))
	}

	commit := &models.PurchaseCommit{}
	for i, entry := range entries {
		if flags[2*i] == 1 {
			commit.Granted = append(commit.Granted, entry.GameID)
		} else {
			commit.AlreadyOwned = append(commit.AlreadyOwned, entry.GameID)
		}
		if flags[2*i+1] == 1 {
			commit.SalesWritten++
		}
	}

	return commit, nil
}

func (s *RedisService) ListSales(ctx context.Context, limit int64) ([]*models.SaleRecord, error) {
	limit = clampLimit(limit)

	ids, err := s.client.ZRevRange(ctx, KeySalesIndex, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sale IDs: %w", err)
	}
	if len(ids) == 0 {
		return []*models.SaleRecord{}, nil
	}

	values, err := s.client.HMGet(ctx, KeySales, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sales: %w", err)
	}

	records := make([]*models.SaleRecord, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}

		var record models.SaleRecord
		if err := models.DecodeDocument([]byte(data), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}

	return records, nil
}

func (s *RedisService) SaveNonce(ctx context.Context, nonce *models.Nonce, ttl time.Duration) error {
	return s.setDocument(ctx, fmt.Sprintf(KeyNonce, nonce.Address), nonce, ttl)
}

func (s *RedisService) GetNonce(ctx context.Context, address string) (*models.Nonce, error) {
	var nonce models.Nonce
	if err := s.getDocument(ctx, fmt.Sprintf(KeyNonce, address), &nonce); err != nil {
		return nil, err
	}
	return &nonce, nil
}

func (s *RedisService) DeleteNonce(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, fmt.Sprintf(KeyNonce, address)).Err(); err != nil {
		return fmt.Errorf("failed to delete nonce: %w", err)
	}
	return nil
}

func (s *RedisService) SaveAdminMessage(ctx context.Context, msg *models.AdminMessage) error {
	if err := models.Validate(msg); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal admin message: %w", err)
	}

	tx := s.client.TxPipeline()
	tx.HSet(ctx, KeyAdminMessages, msg.ID, data)
	tx.ZAdd(ctx, KeyAdminMessagesIndex, redis.Z{
		Score:  float64(msg.CreatedAt.Unix()),
		Member: msg.ID,
	})
	if _, err := tx.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save admin message: %w", err)
	}
	return nil
}

func (s *RedisService) ListAdminMessages(ctx context.Context, limit int64) ([]*models.AdminMessage, error) {
	limit = clampLimit(limit)

	ids, err := s.client.ZRevRange(ctx, KeyAdminMessagesIndex, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get message IDs: %w", err)
	}
	if len(ids) == 0 {
		return []*models.AdminMessage{}, nil
	}

	values, err := s.client.HMGet(ctx, KeyAdminMessages, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]*models.AdminMessage, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}

		var msg models.AdminMessage
		if err := models.DecodeDocument([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

func (s *RedisService) SaveDeveloperApplication(ctx context.Context, app *models.DeveloperApplication) error {
	if err := models.Validate(app); err != nil {
		return err
	}
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}

	member := app.UserID + "/" + app.ID

	tx := s.client.TxPipeline()
	tx.HSet(ctx, fmt.Sprintf(KeyUserApplications, app.UserID), app.ID, data)
	if app.Status == models.ApplicationPending {
		tx.SAdd(ctx, KeyPendingApplications, member)
	} else {
		tx.SRem(ctx, KeyPendingApplications, member)
	}
	if _, err := tx.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save application: %w", err)
	}
	return nil
}

func (s *RedisService) GetDeveloperApplication(ctx context.Context, userID, appID string) (*models.DeveloperApplication, error) {
	data, err := s.client.HGet(ctx, fmt.Sprintf(KeyUserApplications, userID), appID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	var app models.DeveloperApplication
	if err := models.DecodeDocument(data, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *RedisService) ListDeveloperApplications(ctx context.Context, userID string) ([]*models.DeveloperApplication, error) {
	values, err := s.client.HVals(ctx, fmt.Sprintf(KeyUserApplications, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	apps := make([]*models.DeveloperApplication, 0, len(values))
	for _, v := range values {
		var app models.DeveloperApplication
		if err := models.DecodeDocument([]byte(v), &app); err != nil {
			return nil, err
		}
		apps = append(apps, &app)
	}
	return apps, nil
}

func (s *RedisService) ListPendingDeveloperApplications(ctx context.Context) ([]*models.DeveloperApplication, error) {
	members, err := s.client.SMembers(ctx, KeyPendingApplications).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending applications: %w", err)
	}

	apps := make([]*models.DeveloperApplication, 0, len(members))
	for _, member := range members {
		userID, appID, ok := splitApplicationMember(member)
		if !ok {
			continue
		}
		app, err := s.GetDeveloperApplication(ctx, userID, appID)
		if err != nil {
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (s *RedisService) PublishUserEvent(ctx context.Context, event *models.UserEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, fmt.Sprintf(ChannelUserEvents, event.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (s *RedisService) SubscribeUserEvents(ctx context.Context, userID string) (<-chan *models.UserEvent, func(), error) {
	pubsub := s.client.Subscribe(ctx, fmt.Sprintf(ChannelUserEvents, userID))

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan *models.UserEvent, 16)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.UserEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.logger.Warn("dropping malformed user event", slog.Any("error", err))
					continue
				}
				select {
				case out <- &event:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	return out, cancel, nil
}

func (s *RedisService) RecordPermissionDenied(ctx context.Context, d *models.PermissionDiagnostic) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostic: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, KeyPermissionDiagnostics, data)
	pipe.LTrim(ctx, KeyPermissionDiagnostics, 0, s.diagnosticsLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record diagnostic: %w", err)
	}
	return nil
}

func (s *RedisService) ListPermissionDenied(ctx context.Context, limit int64) ([]*models.PermissionDiagnostic, error) {
	limit = clampLimit(limit)

	values, err := s.client.LRange(ctx, KeyPermissionDiagnostics, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}

	out := make([]*models.PermissionDiagnostic, 0, len(values))
	for _, v := range values {
		var d models.PermissionDiagnostic
		if err := json.Unmarshal([]byte(v), &d); err != nil {
			continue
		}
		out = append(out, &d)
	}
	return out, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// DeleteUserData removes everything stored under a user. Used by tests and
// the operator CLI.
func (s *RedisService) DeleteUserData(ctx context.Context, userID string) error {
	return s.client.Del(ctx,
		fmt.Sprintf(KeyUser, userID),
		fmt.Sprintf(KeyUserLibrary, userID),
		fmt.Sprintf(KeyUserWishlist, userID),
		fmt.Sprintf(KeyUserApplications, userID),
	).Err()
}

func (s *RedisService) DeleteSale(ctx context.Context, saleID string) error {
	tx := s.client.TxPipeline()
	tx.HDel(ctx, KeySales, saleID)
	tx.ZRem(ctx, KeySalesIndex, saleID)
	_, err := tx.Exec(ctx)
	return err
}

func (s *RedisService) DeleteGame(ctx context.Context, gameID string) error {
	tx := s.client.TxPipeline()
	tx.Del(ctx, fmt.Sprintf(KeyGame, gameID))
	tx.SRem(ctx, KeyGamesIndex, gameID)
	_, err := tx.Exec(ctx)
	return err
}
