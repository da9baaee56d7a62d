package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/peterson-htn252/HTN252/chaincode/aid-core/chaincode"
)

func main() {
	aidChaincode, err := contractapi.NewChaincode(&chaincode.SmartContract{})
	if err != nil {
		log.Panicf("Error creating aid-core chaincode: %v", err)
	}

	if err := aidChaincode.Start(); err != nil {
		log.Panicf("Error starting aid-core chaincode: %v", err)
	}
}
