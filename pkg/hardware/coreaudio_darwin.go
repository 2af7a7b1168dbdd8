//go:build darwin

package hardware

/*
#cgo LDFLAGS: -framework CoreAudio -framework CoreFoundation

#include <CoreAudio/CoreAudio.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdlib.h>

enum {
    kindUnknown = 0,
    kindSpeaker = 1,
    kindWiredHeadset = 2,
    kindBluetoothClassic = 3,
    kindBluetoothLE = 4,
    kindAirPlay = 5
};

typedef struct {
    AudioDeviceID deviceID;
    int kind;
} OutputInfo;

static int hasOutputStreams(AudioDeviceID dev) {
    AudioObjectPropertyAddress addr = {
        kAudioDevicePropertyStreams,
        kAudioDevicePropertyScopeOutput,
        kAudioObjectPropertyElementMain
    };
    UInt32 size = 0;
    if (AudioObjectGetPropertyDataSize(dev, &addr, 0, NULL, &size) != noErr) return 0;
    return size > 0;
}

static int isAlive(AudioDeviceID dev) {
    AudioObjectPropertyAddress addr = {
        kAudioDevicePropertyDeviceIsAlive,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    UInt32 alive = 0;
    UInt32 size = sizeof(alive);
    if (AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, &alive) != noErr) return 0;
    return alive != 0;
}

static UInt32 transportType(AudioDeviceID dev) {
    AudioObjectPropertyAddress addr = {
        kAudioDevicePropertyTransportType,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    UInt32 transport = 0;
    UInt32 size = sizeof(transport);
    if (AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, &transport) != noErr) return 0;
    return transport;
}

static UInt32 dataSource(AudioDeviceID dev) {
    AudioObjectPropertyAddress addr = {
        kAudioDevicePropertyDataSource,
        kAudioDevicePropertyScopeOutput,
        kAudioObjectPropertyElementMain
    };
    UInt32 source = 0;
    UInt32 size = sizeof(source);
    if (AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, &source) != noErr) return 0;
    return source;
}

static int classifyOutput(AudioDeviceID dev) {
    switch (transportType(dev)) {
    case kAudioDeviceTransportTypeBuiltIn:
        return dataSource(dev) == 'hdpn' ? kindWiredHeadset : kindSpeaker;
    case kAudioDeviceTransportTypeBluetooth:
        return kindBluetoothClassic;
    case kAudioDeviceTransportTypeBluetoothLE:
        return kindBluetoothLE;
    case kAudioDeviceTransportTypeAirPlay:
        return kindAirPlay;
    default:
        return kindUnknown;
    }
}

static OSStatus listOutputs(OutputInfo* out, int maxOutputs, int* count) {
    AudioObjectPropertyAddress addr = {
        kAudioHardwarePropertyDevices,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    *count = 0;

    UInt32 size = 0;
    OSStatus status = AudioObjectGetPropertyDataSize(kAudioObjectSystemObject, &addr, 0, NULL, &size);
    if (status != noErr) return status;
    if (size == 0) return noErr;

    AudioDeviceID* ids = malloc(size);
    if (!ids) return kAudioHardwareUnspecifiedError;
    status = AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, ids);
    if (status != noErr) {
        free(ids);
        return status;
    }

    int n = size / sizeof(AudioDeviceID);
    for (int i = 0; i < n && *count < maxOutputs; i++) {
        if (!hasOutputStreams(ids[i]) || !isAlive(ids[i])) continue;
        out[*count].deviceID = ids[i];
        out[*count].kind = classifyOutput(ids[i]);
        (*count)++;
    }

    free(ids);
    return noErr;
}

static OSStatus getDefaultOutput(AudioDeviceID* dev) {
    AudioObjectPropertyAddress addr = {
        kAudioHardwarePropertyDefaultOutputDevice,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    UInt32 size = sizeof(AudioDeviceID);
    return AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, dev);
}

static OSStatus setDefaultOutput(AudioDeviceID dev) {
    AudioObjectPropertyAddress addr = {
        kAudioHardwarePropertyDefaultOutputDevice,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    OSStatus status = AudioObjectSetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, sizeof(dev), &dev);
    if (status != noErr) return status;

    addr.mSelector = kAudioHardwarePropertyDefaultSystemOutputDevice;
    return AudioObjectSetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, sizeof(dev), &dev);
}

// selectSpeakerSource switches a built-in device to its internal speaker
// when the data source can be changed.
static OSStatus selectSpeakerSource(AudioDeviceID dev) {
    AudioObjectPropertyAddress addr = {
        kAudioDevicePropertyDataSource,
        kAudioDevicePropertyScopeOutput,
        kAudioObjectPropertyElementMain
    };
    if (!AudioObjectHasProperty(dev, &addr)) return noErr;

    Boolean settable = false;
    OSStatus status = AudioObjectIsPropertySettable(dev, &addr, &settable);
    if (status != noErr || !settable) return status;

    UInt32 source = 'ispk';
    return AudioObjectSetPropertyData(dev, &addr, 0, NULL, sizeof(source), &source);
}

static int outputKind(AudioDeviceID dev) {
    return classifyOutput(dev);
}
*/
import "C"

import (
	"fmt"
	"sync"

	"github.com/dougsko/audioroute/pkg/logging"
	"github.com/dougsko/audioroute/pkg/routing"
)

const maxCoreAudioOutputs = 64

// coreAudioOutput is an output-capable HAL device
type coreAudioOutput struct {
	id   C.AudioDeviceID
	kind routing.OutputDevice
}

// CoreAudioAdapter routes audio on macOS through the CoreAudio HAL default
// output device.
type CoreAudioAdapter struct {
	mu sync.Mutex
}

// NewCoreAudioAdapter creates a macOS routing adapter
func NewCoreAudioAdapter() *CoreAudioAdapter {
	return &CoreAudioAdapter{}
}

// Name returns the adapter name
func (a *CoreAudioAdapter) Name() string {
	return "coreaudio"
}

func kindFromC(kind C.int) routing.OutputDevice {
	switch int(kind) {
	case int(C.kindSpeaker):
		return routing.Speaker
	case int(C.kindWiredHeadset):
		return routing.WiredHeadset
	case int(C.kindBluetoothClassic):
		return routing.BluetoothClassic
	case int(C.kindBluetoothLE):
		return routing.BluetoothLowEnergy
	case int(C.kindAirPlay):
		return routing.AirPlayOrCast
	default:
		return routing.Unknown
	}
}

// osStatusError renders an OSStatus, showing its four-character code when printable
func osStatusError(status C.OSStatus) error {
	code := uint32(int32(status))
	b := []byte{byte(code >> 24), byte(code >> 16), byte(code >> 8), byte(code)}
	for _, c := range b {
		if c < 32 || c > 126 {
			return fmt.Errorf("CoreAudio error %d", int32(status))
		}
	}
	return fmt.Errorf("CoreAudio error %d ('%s')", int32(status), string(b))
}

func (a *CoreAudioAdapter) outputs() ([]coreAudioOutput, error) {
	infos := make([]C.OutputInfo, maxCoreAudioOutputs)
	var count C.int

	status := C.listOutputs(&infos[0], C.int(maxCoreAudioOutputs), &count)
	if status != 0 {
		return nil, osStatusError(status)
	}

	result := make([]coreAudioOutput, int(count))
	for i := range result {
		result[i] = coreAudioOutput{
			id:   infos[i].deviceID,
			kind: kindFromC(infos[i].kind),
		}
	}
	return result, nil
}

// EnumerateOutputs lists output-capable devices by transport type
func (a *CoreAudioAdapter) EnumerateOutputs() ([]routing.OutputDevice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	outputs, err := a.outputs()
	if err != nil {
		return nil, err
	}
	return routing.Dedupe(outputKinds(outputs)), nil
}

// activate makes dev the default output and confirms the HAL reports it back
func (a *CoreAudioAdapter) activate(dev C.AudioDeviceID) error {
	if status := C.setDefaultOutput(dev); status != 0 {
		return newExecutionError(CodeAudioSession, "set default output", osStatusError(status))
	}

	var current C.AudioDeviceID
	if status := C.getDefaultOutput(&current); status != 0 {
		return newExecutionError(CodeAudioSession, "activate", osStatusError(status))
	}
	if current != dev {
		return newExecutionError(CodeAudioSession, "activate",
			fmt.Errorf("default output is device %d, expected %d", uint32(current), uint32(dev)))
	}
	return nil
}

func outputKinds(outputs []coreAudioOutput) []routing.OutputDevice {
	kinds := make([]routing.OutputDevice, len(outputs))
	for i, o := range outputs {
		kinds[i] = o.kind
	}
	return kinds
}

func (a *CoreAudioAdapter) forceSpeaker() error {
	outputs, err := a.outputs()
	if err != nil {
		return newExecutionError(CodeAudioSession, "list outputs", err)
	}

	candidates := speakerCandidates(outputKinds(outputs))
	if len(candidates) == 0 {
		return newExecutionError(CodeAudioSession, "select speaker", fmt.Errorf("no built-in output device found"))
	}

	for _, i := range candidates {
		dev := outputs[i].id
		if status := C.selectSpeakerSource(dev); status != 0 {
			return newExecutionError(CodeAudioSession, "select speaker", osStatusError(status))
		}
		if kindFromC(C.outputKind(dev)) == routing.Speaker {
			return a.activate(dev)
		}
	}
	return newExecutionError(CodeAudioSession, "select speaker",
		fmt.Errorf("built-in output is held by headphones and cannot be switched"))
}

// ApplyForceSpeaker makes the built-in speaker the default output
func (a *CoreAudioAdapter) ApplyForceSpeaker() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.forceSpeaker()
}

// ApplyDefaultRouting makes the preferred external device the default output,
// or the speaker when preferExternal is false. With no external device left
// the current default output is kept.
func (a *CoreAudioAdapter) ApplyDefaultRouting(preferExternal bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !preferExternal {
		return a.forceSpeaker()
	}

	outputs, err := a.outputs()
	if err != nil {
		return newExecutionError(CodeAudioSession, "list outputs", err)
	}

	best, ok := bestExternal(outputKinds(outputs))
	if !ok {
		logging.Info("coreaudio", "no external output device, keeping the current default output")
		return nil
	}
	return a.activate(outputs[best].id)
}
