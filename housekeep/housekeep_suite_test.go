// Package housekeep provides a registrar for named functions invoked
// at specified intervals.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package housekeep_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/meh/shumei/housekeep"
)

func TestHousekeeper(t *testing.T) {
	housekeep.TestInit()
	go housekeep.DefaultHK.Run()
	housekeep.WaitStarted()
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
