package redis

import (
	"AttendanceBackend/internal/entity"
	"fmt"
	"golang.org/x/net/context"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const faceVectorsKeyPrefix = "face_vectors:"

// IRedis is the roster cache in front of the feature store.
type IRedis interface {
	GetFaceVectors(ctx context.Context, studentIDs []string) (map[string][]entity.FeatureVector, []string, error)
	SetFaceVectors(ctx context.Context, studentID string, vectors []entity.FeatureVector) error
	DeleteFaceVectors(ctx context.Context, studentID string) error
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	ttl, err := time.ParseDuration(os.Getenv("ROSTER_CACHE_TTL"))
	if err != nil || ttl <= 0 {
		ttl = 10 * time.Minute
	}

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, ttl)
}

func NewWithClient(client *redis.Client, ttl time.Duration) IRedis {
	return &redisClient{client: client, ttl: ttl}
}

func faceVectorsKey(studentID string) string {
	return faceVectorsKeyPrefix + studentID
}

// GetFaceVectors returns cached vectors for the students that are cached and
// the ids of those that are not.
func (r *redisClient) GetFaceVectors(ctx context.Context, studentIDs []string) (map[string][]entity.FeatureVector, []string, error) {
	hits := make(map[string][]entity.FeatureVector, len(studentIDs))
	if len(studentIDs) == 0 {
		return hits, nil, nil
	}

	keys := make([]string, len(studentIDs))
	for i, id := range studentIDs {
		keys[i] = faceVectorsKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error reading face vectors for %d students: %v", len(studentIDs), err))
		return nil, studentIDs, err
	}

	var misses []string
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			misses = append(misses, studentIDs[i])
			continue
		}
		var vectors []entity.FeatureVector
		if err := jsoniter.UnmarshalFromString(raw, &vectors); err != nil {
			logrus.Warn(fmt.Sprintf("Discarding corrupt cached vectors for %s: %v", studentIDs[i], err))
			misses = append(misses, studentIDs[i])
			continue
		}
		hits[studentIDs[i]] = vectors
	}

	logrus.Debug(fmt.Sprintf("Face vector cache: %d hits, %d misses", len(hits), len(misses)))
	return hits, misses, nil
}

func (r *redisClient) SetFaceVectors(ctx context.Context, studentID string, vectors []entity.FeatureVector) error {
	raw, err := jsoniter.MarshalToString(vectors)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, faceVectorsKey(studentID), raw, r.ttl).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching face vectors for %s: %v", studentID, err))
		return err
	}
	return nil
}

func (r *redisClient) DeleteFaceVectors(ctx context.Context, studentID string) error {
	result, err := r.client.Del(ctx, faceVectorsKey(studentID)).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting cached face vectors for %s: %v", studentID, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("No cached face vectors for %s", studentID))
	}
	return nil
}
