package redis

import (
	"context"
	"reflect"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// hSetStruct writes a struct's redis-tagged fields as hash fields, skipping
// nil pointers so partial records never write empty values.
func (r repo) hSetStruct(ctx context.Context, c redis.Pipeliner, key string, value any) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	fields := make(map[string]any)
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" {
			tag = t.Field(i).Name
		}

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				continue
			}
			fields[tag] = field.Elem().Interface()
		} else {
			fields[tag] = field.Interface()
		}
	}

	c.HSet(ctx, key, fields)
}

// addToList appends a member to a zset with the next incremental score, so
// insertion order survives.
func (r repo) addToList(ctx context.Context, c redis.Pipeliner, key, member string) {
	c.ZAdd(ctx, key, redis.Z{Score: float64(nowScore(ctx, r.rc, key)), Member: member})
}

func nowScore(ctx context.Context, rc *redis.Client, key string) int64 {
	max, err := rc.ZRevRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(max) == 0 {
		return 1
	}

	return int64(max[0].Score) + 1
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

func zMember(round int) redis.Z {
	return redis.Z{Score: float64(round), Member: strconv.Itoa(round)}
}

func fieldToFloat64(field string) float64 {
	f, _ := strconv.ParseFloat(field, 64)
	return f
}
