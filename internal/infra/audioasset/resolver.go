package audioasset

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// assetName returns the audio file for a prayer. Fajr carries its own recording.
func assetName(name prayer.Name) string {
	if name == prayer.Fajr {
		return "fajr.mp3"
	}
	return "adhan.mp3"
}

// objectKey is the path of an asset relative to the base URL or bucket root.
func objectKey(reciter string, name prayer.Name) string {
	return reciter + "/" + assetName(name)
}

// reciters returns the primary reciter followed by distinct fallbacks.
func reciters(primary string, fallbacks []string) []string {
	out := []string{primary}
	seen := map[string]struct{}{primary: {}}
	for _, r := range fallbacks {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func validate(name prayer.Name, reciter string) (string, error) {
	if !name.Notifiable() {
		return "", apperrors.Wrap(prayer.CodeInvalidInput, fmt.Sprintf("%s has no adhan", name), nil)
	}
	reciter = strings.TrimSpace(reciter)
	if reciter == "" || strings.ContainsAny(reciter, "/\\?#") {
		return "", apperrors.Wrap(prayer.CodeInvalidInput, "invalid reciter", nil)
	}
	return reciter, nil
}

// StaticResolver builds plain URLs under a base address.
type StaticResolver struct {
	baseURL   string
	fallbacks []string
}

// NewStaticResolver constructs a StaticResolver.
func NewStaticResolver(baseURL string, fallbackReciters []string) *StaticResolver {
	return &StaticResolver{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		fallbacks: fallbackReciters,
	}
}

// Resolve returns the primary and fallback URLs for name.
func (r *StaticResolver) Resolve(_ context.Context, name prayer.Name, reciter string) (adhan.Assets, error) {
	reciter, err := validate(name, reciter)
	if err != nil {
		return adhan.Assets{}, err
	}
	var assets adhan.Assets
	for i, rec := range reciters(reciter, r.fallbacks) {
		address := r.baseURL + "/" + objectKey(rec, name)
		if i == 0 {
			assets.Primary = address
			continue
		}
		assets.Fallbacks = append(assets.Fallbacks, address)
	}
	return assets, nil
}
