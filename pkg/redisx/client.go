package redisx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/pkg/logger"
)

// Client wraps redis.Client with logging helpers used by the storage layer
type Client struct {
	*redis.Client
	url    string
	logger *logger.Logger
}

// ClientOption represents an option for creating a new Redis client
type ClientOption func(*clientOptions)

type clientOptions struct {
	usePrivateDB bool
}

// WithPrivate enables private DB isolation for development environments.
// A DB number is assigned per hostname.
func WithPrivate() ClientOption {
	return func(opts *clientOptions) {
		opts.usePrivateDB = true
	}
}

// NewClient creates a new Redis client from URL with options
func NewClient(redisURL string, log *logger.Logger, opts ...ClientOption) (*Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	finalURL := redisURL
	if options.usePrivateDB {
		var err error
		finalURL, err = PrivateURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get private URL: %w", err)
		}
	}

	redisOptions, err := redis.ParseURL(finalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := &Client{
		Client: redis.NewClient(redisOptions),
		url:    finalURL,
		logger: log.WithComponent("redisx"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client.logger.Info("Redis client connected successfully",
		zap.String("addr", redisOptions.Addr),
		zap.Int("db", redisOptions.DB),
		zap.Bool("private_db", options.usePrivateDB),
	)

	return client, nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.Client.Close()
}

// HealthCheck performs a health check on the Redis connection
func (c *Client) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := c.Ping(ctx).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Redis health check failed",
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return err
	}

	c.logger.Debug("Redis health check passed", zap.Duration("duration", duration))
	return nil
}

// GetString returns the value at key. found is false when the key is absent.
func (c *Client) GetString(ctx context.Context, key string) (value string, found bool, err error) {
	start := time.Now()
	value, err = c.Get(ctx, key).Result()
	duration := time.Since(start)

	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Key not found", zap.String("key", key), zap.Duration("duration", duration))
		return "", false, nil
	}
	if err != nil {
		c.logger.Error("Failed to get key",
			zap.String("key", key),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", false, err
	}

	c.logger.Debug("Got key", zap.String("key", key), zap.Duration("duration", duration))
	return value, true, nil
}

// SetString stores value at key without expiration
func (c *Client) SetString(ctx context.Context, key, value string) error {
	start := time.Now()
	err := c.Set(ctx, key, value, 0).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Failed to set key",
			zap.String("key", key),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Set key", zap.String("key", key), zap.Int("bytes", len(value)), zap.Duration("duration", duration))
	return nil
}

// HSetFields writes all fields of a hash in a single HSET, which Redis
// applies atomically.
func (c *Client) HSetFields(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	start := time.Now()
	err := c.HSet(ctx, key, values).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Failed to set hash fields",
			zap.String("key", key),
			zap.Int("field_count", len(fields)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Set hash fields",
		zap.String("key", key),
		zap.Int("field_count", len(fields)),
		zap.Duration("duration", duration),
	)
	return nil
}

// HGetAllFields returns every field of a hash; an absent key yields an empty map
func (c *Client) HGetAllFields(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	result, err := c.HGetAll(ctx, key).Result()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Failed to get all hash fields",
			zap.String("key", key),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("Got all hash fields",
		zap.String("key", key),
		zap.Int("field_count", len(result)),
		zap.Duration("duration", duration),
	)
	return result, nil
}

// PrivateURL provides development isolation by assigning unique DB numbers
// based on hostname. DB 0 holds the hostname->DB mapping.
func PrivateURL(redisURL string) (string, error) {
	if redisURL == "" {
		return "", fmt.Errorf("redis URL cannot be empty")
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	return privateURLWithHostname(redisURL, hostname)
}

func privateURLWithHostname(redisURL, hostname string) (string, error) {
	if redisURL == "" {
		return "", fmt.Errorf("redis URL cannot be empty")
	}

	if hostname == "" {
		return "", fmt.Errorf("hostname cannot be empty")
	}

	parsedURL, err := url.Parse(redisURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	db0URL := *parsedURL
	db0URL.Path = "/0"

	options, err := redis.ParseURL(db0URL.String())
	if err != nil {
		return "", fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(options)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbNumber, err := rdb.HGet(ctx, "private_db", hostname).Result()
	if errors.Is(err, redis.Nil) {
		nextDB, err := rdb.HIncrBy(ctx, "private_db:counter", "next", 1).Result()
		if err != nil {
			return "", fmt.Errorf("failed to get next DB number: %w", err)
		}

		if err := rdb.HSet(ctx, "private_db", hostname, nextDB).Err(); err != nil {
			return "", fmt.Errorf("failed to assign DB to hostname: %w", err)
		}

		dbNumber = strconv.FormatInt(nextDB, 10)
	} else if err != nil {
		return "", fmt.Errorf("failed to check existing DB assignment: %w", err)
	}

	newURL := *parsedURL
	newURL.Path = "/" + dbNumber

	return newURL.String(), nil
}
