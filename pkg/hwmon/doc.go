// SPDX-License-Identifier: BSD-3-Clause

// Package hwmon provides a comprehensive interface for interacting with the Linux hwmon (hardware monitoring)
// subsystem through sysfs. This package enables BMC (Baseboard Management Controller) systems and other
// applications to read sensor values, control fans, and manage hardware monitoring devices in a safe and
// efficient manner.
//
// # Overview
//
// The Linux hwmon subsystem exposes hardware monitoring devices through the sysfs filesystem under
// /sys/class/hwmon/. Each hwmon device typically represents a monitoring chip (temperature sensors,
// voltage sensors, fan controllers, etc.) and provides various attributes for reading sensor values
// and controlling device behavior.
//
// This package provides the following key features:
//   - Automatic discovery of hwmon devices by name and label
//   - Type-safe reading and writing of sensor values
//   - Context-aware operations with timeout support
//   - Configurable retry mechanisms and error handling
//   - Support for various sensor types (temperature, voltage, fan, power, etc.)
//   - Thread-safe operations for concurrent access
//   - Structured error handling with specific error types
//   - Comprehensive validation of sensor paths and values
//
// # Core Concepts
//
// Hwmon Device: A hardware monitoring device exposed by the kernel through sysfs. Each device
// has a unique hwmon number (e.g., hwmon0, hwmon1) and typically contains multiple sensors.
//
// Sensor: An individual monitoring point within a hwmon device. Sensors have types (temp, fan,
// voltage, etc.) and provide various attributes like input values, labels, limits, and alarms.
//
// Attribute: A specific property of a sensor exposed as a file in sysfs. Common attributes include:
//   - _input: Current sensor reading
//   - _label: Human-readable sensor name
//   - _min/_max: Minimum/maximum thresholds
//   - _crit: Critical threshold
//   - _alarm: Alarm status
//   - _enable: Enable/disable sensor
//
// Sensor Path: The complete sysfs path to a sensor attribute, constructed from the hwmon device
// path and the specific attribute file.
//
// # Basic Usage
//
// Reading a temperature sensor by device name and label:
//
//	ctx := context.Background()
//	discoverer := NewDiscoverer(WithDiscoveryTimeout(5 * time.Second))
//
//	device, err := discoverer.FindDevice(ctx, "k10temp")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sensor, err := device.GetSensorByLabel(ctx, "Tctl")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	path, err := sensor.GetAttributePath(AttributeInput)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	milli, err := ReadIntCtx(ctx, path)
//	if err != nil {
//		log.Printf("Failed to read sensor: %v", err)
//		return
//	}
//
//	fmt.Printf("CPU temperature: %.1f°C\n", NewTemperatureValue(int64(milli)).Celsius())
//
// Discovering all temperature sensors:
//
//	sensors, err := discoverer.DiscoverSensors(ctx, SensorTypeTemperature)
//	if err != nil {
//		log.Printf("Discovery failed: %v", err)
//		return
//	}
//
//	for _, sensor := range sensors {
//		path, err := sensor.GetAttributePath(AttributeInput)
//		if err != nil {
//			continue
//		}
//		milli, err := ReadIntCtx(ctx, path)
//		if err != nil {
//			continue
//		}
//		fmt.Printf("%s: %.1f°C\n", sensor.Label, NewTemperatureValue(int64(milli)).Celsius())
//	}
//
// Controlling a fan through its PWM output:
//
//	device, err := discoverer.FindDevice(ctx, "nct6775")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pwm, err := device.GetSensorByTypeAndIndex(ctx, SensorTypePWM, 1)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	path, err := pwm.GetAttributePath(AttributeInput)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Set the fan to about 50% duty (PWM range 0-255)
//	if err := WriteIntCtx(ctx, path, int(NewPWMValue(127).Raw())); err != nil {
//		log.Printf("Failed to set fan speed: %v", err)
//	}
//
// # Device Discovery
//
// The package provides automatic discovery of hwmon devices and sensors:
//
//	discoverer := NewDiscoverer(
//		WithDiscoveryPath("/sys/class/hwmon"),
//		WithDiscoveryTimeout(10*time.Second),
//	)
//
//	// Find device by name
//	device, err := discoverer.FindDevice(ctx, "k10temp")
//	if err != nil {
//		log.Printf("Device not found: %v", err)
//		return
//	}
//
//	// Get all sensors for the device
//	sensors, err := device.GetSensors(ctx)
//	if err != nil {
//		log.Printf("Failed to get sensors: %v", err)
//		return
//	}
//
// # Sensor Types and Values
//
// Temperature, fan and PWM readings have typed value wrappers over the raw
// sysfs integers:
//
//	// Temperature sensors (millidegree Celsius)
//	temp := NewTemperatureValue(int64(milli))
//	fmt.Printf("Temperature: %.1f°C\n", temp.Celsius())
//
//	// Fan sensors (RPM)
//	fan := NewFanValue(int64(rpm))
//	fmt.Printf("Fan speed: %d RPM\n", fan.RPM())
//
//	// PWM outputs (0-255 duty)
//	duty := NewPWMValue(int64(raw))
//	fmt.Printf("Duty: %.1f%%\n", duty.Percent())
//
// Voltage, current, power, humidity and pressure sensors are discovered like
// the others but have no value wrapper; their raw integers are read with
// ReadIntCtx.
//
// # Configuration and Options
//
// A Discoverer is configured with options:
//
//	discoverer := NewDiscoverer(
//		WithDiscoveryPath("/sys/class/hwmon"),
//		WithDiscoveryTimeout(5*time.Second),
//		WithDiscoveryCache(true, 1*time.Second),
//	)
//
// # Error Handling
//
// The package provides structured error handling with specific error types:
//
//	device, err := discoverer.FindDevice(ctx, "k10temp")
//	if err != nil {
//		switch {
//		case errors.Is(err, ErrDeviceNotFound):
//			log.Printf("Hwmon device not found")
//		case errors.Is(err, ErrReadTimeout):
//			log.Printf("Discovery timed out")
//		default:
//			log.Printf("Unexpected error: %v", err)
//		}
//		return
//	}
//
//	sensor, err := device.GetSensorByLabel(ctx, "Tctl")
//	if errors.Is(err, ErrSensorNotFound) {
//		log.Printf("Sensor not found on device")
//		return
//	}
//
//	milli, err := ReadIntCtx(ctx, path)
//	if err != nil {
//		switch {
//		case errors.Is(err, ErrOperationTimeout):
//			log.Printf("Read operation timed out")
//		case errors.Is(err, ErrPermissionDenied):
//			log.Printf("Permission denied accessing sensor")
//		case errors.Is(err, ErrInvalidValue):
//			log.Printf("Invalid sensor value read")
//		default:
//			log.Printf("Read error: %v", err)
//		}
//		return
//	}
//
// # Thread Safety
//
// All operations in this package are thread-safe. Multiple goroutines can safely:
//   - Read from the same or different sensors simultaneously
//   - Perform device discovery operations concurrently
//   - Access sensor metadata and configuration
//   - Write to different sensors (writes to the same sensor should be coordinated by the caller)
//
// The implementation uses appropriate synchronization mechanisms to ensure data consistency
// while allowing concurrent access where safe.
//
// # BMC Integration
//
// This package is designed specifically for BMC systems where hardware monitoring is critical:
//
// Temperature Monitoring: Monitor CPU, GPU, motherboard, and ambient temperatures for thermal
// management and protection.
//
//	tempSensors, _ := discoverer.DiscoverSensors(ctx, SensorTypeTemperature)
//	for _, sensor := range tempSensors {
//		path, _ := sensor.GetAttributePath(AttributeInput)
//		milli, _ := ReadIntCtx(ctx, path)
//		if NewTemperatureValue(int64(milli)).Celsius() > 85.0 {
//			// Trigger thermal protection
//		}
//	}
//
// Fan Control: Monitor and control system fans for cooling optimization.
//
//	pwmOutputs, _ := discoverer.DiscoverSensors(ctx, SensorTypePWM)
//	for _, pwm := range pwmOutputs {
//		path, err := pwm.GetAttributePath(AttributeInput)
//		if err != nil || !IsWritable(path) {
//			continue
//		}
//		// Implement fan curve based on temperature
//		duty := calculateFanDuty(currentTemp) // 0-255
//		_ = WriteIntCtx(ctx, path, int(NewPWMValue(duty).Raw()))
//	}
//
// Power Monitoring: Track power consumption for efficiency and protection.
//
//	powerSensors, _ := discoverer.DiscoverSensors(ctx, SensorTypePower)
//	totalPower := 0.0
//	for _, sensor := range powerSensors {
//		path, _ := sensor.GetAttributePath(AttributeInput)
//		microwatts, _ := ReadIntCtx(ctx, path)
//		totalPower += float64(microwatts) / 1e6
//	}
//
// Voltage Monitoring: Monitor power rail voltages for stability.
//
//	voltageSensors, _ := discoverer.DiscoverSensors(ctx, SensorTypeVoltage)
//	for _, sensor := range voltageSensors {
//		path, _ := sensor.GetAttributePath(AttributeInput)
//		millivolts, _ := ReadIntCtx(ctx, path)
//		volts := float64(millivolts) / 1000
//		if volts < 11.4 || volts > 12.6 {
//			// Voltage out of acceptable range
//		}
//	}
//
// # Performance Considerations
//
// The package includes several performance optimizations:
//   - Optional caching of discovered devices to reduce directory scans;
//     sensor values are always read from sysfs and are not cached
//   - Efficient device discovery with early termination
//   - Minimal memory allocations during normal operations
//   - Context-aware operations that can be canceled
//   - Configurable retry mechanisms to handle transient errors
//
// For frequent lookups, discovery caching can be enabled:
//
//	discoverer := NewDiscoverer(
//		WithDiscoveryCache(true, 100*time.Millisecond),
//		// other options...
//	)
//
// # Integration with Other Packages
//
// This package is the foundation the agent's control loop is built on:
//
//	// Feed discovered sensors into the connectivity state machine's
//	// emergency trigger.
//	discoverer := NewDiscoverer()
//	sensors, _ := discoverer.DiscoverSensors(ctx, SensorTypeTemperature)
//	connectivitySM, _ := state.NewConnectivityStateMachine("agent")
//
//	go func() {
//		for {
//			for _, sensor := range sensors {
//				path, err := sensor.GetAttributePath(AttributeInput)
//				if err != nil {
//					continue
//				}
//				milli, err := ReadIntCtx(ctx, path)
//				if err != nil {
//					continue
//				}
//				if NewTemperatureValue(int64(milli)).Celsius() > 95 {
//					connectivitySM.Fire(ctx, "thermal_emergency")
//				}
//			}
//			time.Sleep(1 * time.Second)
//		}
//	}()
package hwmon
