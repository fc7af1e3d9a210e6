package memory_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/warp/contract-engine/store/memory"
	"github.com/warp/contract-engine/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(t *testing.T) storetest.Backend { return memory.New() },
	})
}
