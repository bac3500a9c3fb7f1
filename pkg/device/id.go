package device

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LoadOrCreateID returns the stable device identifier stored at path,
// generating and persisting a random UUID on first use.
func LoadOrCreateID(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(b))
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
		logrus.Warnf("device id in %s is not a valid UUID, regenerating", path)
	} else if !os.IsNotExist(err) {
		return "", pkgerrors.Wrapf(err, "failed to read device id from %s", path)
	}

	id := uuid.New().String()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to write device id to %s", path)
	}

	logrus.WithField("deviceId", id).Infof("generated new device id")
	return id, nil
}
