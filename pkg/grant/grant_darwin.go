package grant

/*
#cgo LDFLAGS:  -framework CoreFoundation -framework IOKit

#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/pwr_mgt/IOPMLib.h>

// Expose the macro
const CFStringRef AssertionTypePreventUserIdleSystemSleep = kIOPMAssertionTypePreventUserIdleSystemSleep;
const IOPMAssertionID NullAssertionID = kIOPMNullAssertionID;
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
)

func createAssertion(name, details string) (C.IOPMAssertionID, error) {
	cname := C.CString(name)
	cdetail := C.CString(details)
	defer C.free(unsafe.Pointer(cname))
	defer C.free(unsafe.Pointer(cdetail))

	cfName := C.CFStringCreateWithCString(
		C.kCFAllocatorDefault,
		cname,
		C.kCFStringEncodingUTF8,
	)
	cfDetails := C.CFStringCreateWithCString(
		C.kCFAllocatorDefault,
		cdetail,
		C.kCFStringEncodingUTF8,
	)
	defer C.CFRelease(C.CFTypeRef(cfName))
	defer C.CFRelease(C.CFTypeRef(cfDetails))

	var assertionID C.IOPMAssertionID
	status := C.IOPMAssertionCreateWithDescription(
		C.AssertionTypePreventUserIdleSystemSleep,
		cfName,
		cfDetails,
		0,
		0,
		0,
		0,
		&assertionID,
	)
	if status != C.kIOReturnSuccess {
		return 0, fmt.Errorf("IOPMAssertionCreateWithDescription failed: 0x%x", uint32(status))
	}
	return assertionID, nil
}

func releaseAssertion(assertionID C.IOPMAssertionID) error {
	status := C.IOPMAssertionRelease(assertionID)
	if status != C.kIOReturnSuccess {
		return fmt.Errorf("IOPMAssertionRelease failed: 0x%x", uint32(status))
	}
	return nil
}

// assertionGrant keeps the Mac from idle-sleeping while held.
type assertionGrant struct {
	mu          sync.Mutex
	assertionID C.IOPMAssertionID
}

// There is only one grant per process.
var processGrant = &assertionGrant{assertionID: C.NullAssertionID}

func newPlatformGrant() Grant { return processGrant }

func (g *assertionGrant) Acquire(reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.assertionID != C.NullAssertionID {
		if err := releaseAssertion(g.assertionID); err != nil {
			logrus.Warnf("failed to release previous assertion: %v", err)
		}
		g.assertionID = C.NullAssertionID
	}

	id, err := createAssertion("datacollector", reason)
	if err != nil {
		return err
	}
	g.assertionID = id
	logrus.Debugf("power assertion %d created", uint32(id))
	return nil
}

func (g *assertionGrant) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.assertionID != C.NullAssertionID {
		err := releaseAssertion(g.assertionID)
		logrus.Debugf("power assertion %d released", uint32(g.assertionID))
		g.assertionID = C.NullAssertionID
		return err
	}
	return nil
}

func (g *assertionGrant) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.assertionID != C.NullAssertionID
}
