package models

/*
Trade Ledger Database Models

This package contains the persisted records of the ledger:

- counterparty.go - Counterparty model with its type and status enums
- trade.go        - Trade model with trade type and status enums
- utils.go        - Shared decimal and date helpers
- dto.go          - Wire shapes returned by the API and the live feed

Models are plain data. Queries live in pkg/repository and business rules in
internal/lifecycle; nothing here talks to the database on its own.

To add new models:
1. Create a new file for your domain
2. Define your models with appropriate GORM tags
3. Add TableName() methods
4. Include the models in database.AutoMigrate()
*/
