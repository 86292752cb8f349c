package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func sliceMap[In any, Out any](list []In, mapFn func(val In) Out) []Out {
	var newSlice = make([]Out, len(list))
	for i, val := range list {
		newSlice[i] = mapFn(val)
	}

	return newSlice
}

func sliceContains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}

	return false
}

// parseSorter turns "-name", "+age" or "age" into a sort document.
func parseSorter(sorter []string) bson.D {
	sorter = sliceFilter(sorter, func(s string) bool {
		return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "+-")) != ""
	})

	return sliceMap(sorter, func(s string) bson.E {
		s = strings.TrimSpace(s)
		switch s[0] {
		case '-':
			return bson.E{Key: strings.TrimSpace(s[1:]), Value: -1}
		case '+':
			return bson.E{Key: strings.TrimSpace(s[1:]), Value: 1}
		default:
			return bson.E{Key: s, Value: 1}
		}
	})
}

func sliceFilter[T any](slice []T, filterFunc func(val T) bool) []T {
	var newSlice []T
	for i, val := range slice {
		if filterFunc(val) {
			newSlice = append(newSlice, slice[i])
		}
	}

	return newSlice
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}
