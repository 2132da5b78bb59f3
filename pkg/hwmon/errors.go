// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import "errors"

var (
	// ErrFileNotFound indicates that the specified hwmon file does not exist.
	ErrFileNotFound = errors.New("hwmon file not found")
	// ErrPermissionDenied indicates that access to the hwmon file was denied.
	ErrPermissionDenied = errors.New("permission denied accessing hwmon file")
	// ErrInvalidValue indicates that the value read from or written to hwmon is invalid.
	ErrInvalidValue = errors.New("invalid hwmon value")
	// ErrDeviceNotFound indicates that the specified hwmon device was not found.
	ErrDeviceNotFound = errors.New("hwmon device not found")
	// ErrReadFailure indicates that reading from hwmon failed.
	ErrReadFailure = errors.New("hwmon read failure")
	// ErrWriteFailure indicates that writing to hwmon failed.
	ErrWriteFailure = errors.New("hwmon write failure")
	// ErrInvalidPath indicates that the provided hwmon path is invalid.
	ErrInvalidPath = errors.New("invalid hwmon path")
	// ErrOperationTimeout indicates that the hwmon operation timed out.
	ErrOperationTimeout = errors.New("hwmon operation timeout")
	// ErrDiscoveryFailure indicates that device or sensor discovery failed.
	ErrDiscoveryFailure = errors.New("hwmon discovery failure")
	// ErrReadTimeout indicates that a read operation exceeded its deadline.
	ErrReadTimeout = errors.New("hwmon read timeout")
	// ErrNilContext indicates that a required context.Context was nil.
	ErrNilContext = errors.New("nil context")
	// ErrInvalidConfig indicates that a discovery or device configuration is invalid.
	ErrInvalidConfig = errors.New("invalid hwmon configuration")
	// ErrSensorNotFound indicates that the requested sensor does not exist on the device.
	ErrSensorNotFound = errors.New("hwmon sensor not found")
	// ErrInvalidSensorIndex indicates that a sensor index was out of range or malformed.
	ErrInvalidSensorIndex = errors.New("invalid sensor index")
	// ErrOperationCanceled indicates that the caller's context was canceled mid-operation.
	ErrOperationCanceled = errors.New("hwmon operation canceled")
	// ErrAttributeNotSupported indicates that a sensor does not expose the requested attribute.
	ErrAttributeNotSupported = errors.New("sensor attribute not supported")
	// ErrValueParseFailure indicates that a raw sysfs value could not be parsed into a typed Value.
	ErrValueParseFailure = errors.New("hwmon value parse failure")
	// ErrDeviceUnavailable indicates that a discovered device is no longer reachable.
	ErrDeviceUnavailable = errors.New("hwmon device unavailable")
	// ErrFileSystemError indicates an unexpected filesystem error while accessing hwmon.
	ErrFileSystemError = errors.New("hwmon filesystem error")
	// ErrInvalidAttribute indicates that a sensor attribute string could not be recognized.
	ErrInvalidAttribute = errors.New("invalid sensor attribute")
	// ErrInvalidSensorType indicates that a sensor type prefix could not be recognized.
	ErrInvalidSensorType = errors.New("invalid sensor type")
	// ErrPathNotFound indicates that a referenced filesystem path does not exist.
	ErrPathNotFound = errors.New("hwmon path not found")
	// ErrRetryExhausted indicates that all retry attempts for an operation were exhausted.
	ErrRetryExhausted = errors.New("hwmon retry attempts exhausted")
	// ErrValueOutOfRange indicates that a value fell outside its configured valid range.
	ErrValueOutOfRange = errors.New("hwmon value out of range")
)
