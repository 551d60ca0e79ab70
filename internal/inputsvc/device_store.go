package inputsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
)

var ErrDeviceNotFound = errors.New("device not found")

const deviceKeyPrefix = "input/devices/"

// DeviceRecord is what the store remembers about a device between runs.
type DeviceRecord struct {
	Address      Address     `json:"address"`
	Name         string      `json:"name"`
	Class        DeviceClass `json:"class"`
	FirstSeenAt  time.Time   `json:"firstSeenAt"`
	LastSeenAt   time.Time   `json:"lastSeenAt"`
	ConnectCount uint64      `json:"connectCount"`
}

type DeviceStore struct {
	db *badger.DB
}

func NewDeviceStore(db *badger.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

func deviceKey(addr Address) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", deviceKeyPrefix, addr.Backend, addr.ID))
}

// Touch records a connection of the device at now and returns the updated record.
func (s *DeviceStore) Touch(addr Address, bdev BackendDevice, now time.Time) (DeviceRecord, error) {
	var dev DeviceRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		key := deviceKey(addr)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			dev = DeviceRecord{}
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dev)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal device: %w", err)
			}
		}
		dev.Address = addr
		dev.Name = bdev.Name
		dev.Class = bdev.Class
		if dev.FirstSeenAt.IsZero() {
			dev.FirstSeenAt = now
		}
		dev.LastSeenAt = now
		dev.ConnectCount++
		b, err := json.Marshal(dev)
		if err != nil {
			return fmt.Errorf("failed to marshal device: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("failed to store device: %w", err)
	}
	return dev, nil
}

func (s *DeviceStore) List() ([]DeviceRecord, error) {
	devices := make([]DeviceRecord, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte(deviceKeyPrefix)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var dev DeviceRecord
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dev)
			})
			if err != nil {
				return err
			}
			devices = append(devices, dev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (s *DeviceStore) Get(addr Address) (DeviceRecord, error) {
	var dev DeviceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deviceKey(addr))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dev)
		})
	})
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("failed to get device: %w", err)
	}
	return dev, nil
}
