// Package crypto loads the node's private validator key for signing
// governance transactions from the command line.
package crypto

import (
	"fmt"
	"os"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
	"github.com/mnaamani/joystream/tx"
)

type PV struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	if err = cmtjson.Unmarshal(keyJSONBytes, &pvKey); err != nil {
		return nil, fmt.Errorf("reading private validator key from %v: %w", keyFilePath, err)
	}
	if pvKey.PrivKey == nil {
		return nil, fmt.Errorf("no private key in %v", keyFilePath)
	}
	return &PV{
		privateKey: pvKey.PrivKey,
		publicKey:  pvKey.PrivKey.PubKey(),
	}, nil
}

func (k *PV) PublicKey() []byte {
	return k.publicKey.Bytes()
}

func (k *PV) Address() string {
	return k.publicKey.Address().String()
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

// SignGovTx replaces the signatures of btx with one over its chain-bound
// signing data.
func (k *PV) SignGovTx(btx *tx.GovTx, chainId string) error {
	dat, err := btx.SigData([]byte(chainId))
	if err != nil {
		return err
	}
	sig, err := k.Sign(dat)
	if err != nil {
		return err
	}
	btx.Sig = [][]byte{sig}
	return nil
}
